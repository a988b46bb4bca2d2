package ai

import (
	"strings"
	"unicode"
	"unicode/utf8"

	appcfg "github.com/ideaflow/server/internal/config"
	"github.com/ideaflow/server/internal/models"
)

const (
	offerQuestion = "六个维度都已经完善，现在可以生成笔记了，你要生成笔记吗？"
	readyReply    = "好的，我这就为你生成笔记。"

	TargetConfirm  = "confirm-note"
	TargetGenerate = "generate-note"
)

// offerMarkers identify an assistant turn offering to synthesize a note.
var offerMarkers = []string{"生成笔记吗", "要生成笔记", "生成笔记了吗", "generate a note?", "generate the note?"}

// SaveIntentDetector decides whether the latest user turn asks to stop the
// dialogue and save. It is only consulted after a synthesis offer.
type SaveIntentDetector interface {
	DetectSaveIntent(transcript []Turn) bool
}

// PhraseDetector matches agreement, save and termination phrases. A reply it
// does not accept is left to the dialogue model.
type PhraseDetector struct{}

var (
	// stopAskingPhrases negate the questioning, not the save.
	stopAskingPhrases = []string{"不用再问了", "不要再问了", "别再问了", "不用问了", "不必再问了"}
	// positiveIdioms contain a negation character but agree.
	positiveIdioms = strings.NewReplacer("没问题", "好", "没毛病", "好", "不错", "好")

	negationMarkers    = []string{"不", "没", "别", "未", "甭"}
	englishNegations   = map[string]bool{"no": true, "not": true, "nope": true, "don": true, "dont": true, "never": true}
	refusalPhrases     = []string{"等等", "再想想", "还没", "但是", "不过", "补充", "wait", "later"}
	terminationPhrases = []string{"就这样", "够了", "差不多了", "可以了", "好了", "清楚了"}
	savePhrases        = []string{"生成", "保存", "沉淀", "确认", "save", "generate"}
	agreementPhrases   = []string{
		"好的", "好", "可以", "行", "嗯", "对", "是的", "是", "要",
		"ok", "yes", "sure", "yep", "go ahead",
	}
)

// maxAgreementRunes bounds a bare agreement reply; longer replies without an
// explicit save verb are treated as new content.
const maxAgreementRunes = 12

func (PhraseDetector) DetectSaveIntent(transcript []Turn) bool {
	last := lastTurnIndex(transcript, models.RoleUser)
	if last < 0 {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(transcript[last].Content))
	if text == "" {
		return false
	}
	if containsAny(text, stopAskingPhrases) {
		return true
	}
	text = positiveIdioms.Replace(text)
	if negated(text) || containsAny(text, refusalPhrases) {
		return false
	}
	if containsAny(text, terminationPhrases) || containsAny(text, savePhrases) {
		return true
	}
	return utf8.RuneCountInString(text) <= maxAgreementRunes && containsAny(text, agreementPhrases)
}

// negated reports any negation in the reply. "不好", "不是" and "我不想生成"
// all carry a positive word after the marker.
func negated(text string) bool {
	if containsAny(text, negationMarkers) {
		return true
	}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if englishNegations[w] {
			return true
		}
	}
	return false
}

// ModelJudged leaves the decision to the dialogue model's ready_for_note flag.
type ModelJudged struct{}

func (ModelJudged) DetectSaveIntent([]Turn) bool { return false }

// NewSaveIntentDetector returns the strategy named by ai.save_intent. The
// model-judged policy is used unless phrase matching is asked for.
func NewSaveIntentDetector(strategy string) SaveIntentDetector {
	if strategy == appcfg.SaveIntentPhrase {
		return PhraseDetector{}
	}
	return ModelJudged{}
}

// offerPending reports whether the assistant turn right before the latest
// user turn offered to generate a note.
func offerPending(transcript []Turn) bool {
	user := lastTurnIndex(transcript, models.RoleUser)
	if user <= 0 {
		return false
	}
	for i := user - 1; i >= 0; i-- {
		switch transcript[i].Role {
		case models.RoleAssistant:
			return isOffer(transcript[i].Content)
		case models.RoleUser:
			return false
		}
	}
	return false
}

func isOffer(text string) bool {
	return containsAny(strings.ToLower(text), offerMarkers)
}

func lastTurnIndex(transcript []Turn, role models.TurnRole) int {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == role {
			return i
		}
	}
	return -1
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
