package ai

import (
	"fmt"
	"strings"
)

type DimensionID string

const (
	DimConceptClarity   DimensionID = "concept-clarity"
	DimMotivation       DimensionID = "motivation"
	DimEvidence         DimensionID = "evidence"
	DimApplication      DimensionID = "application"
	DimConsistency      DimensionID = "consistency"
	DimLogicalCoherence DimensionID = "logical-coherence"
)

type DimensionStatus string

const (
	StatusComplete   DimensionStatus = "complete"
	StatusIncomplete DimensionStatus = "incomplete"
)

const (
	IconComplete   = "✅"
	IconIncomplete = "🔸"
)

// Dimension is one completeness axis. Name and NameIncomplete are the
// labels for the two states; Icon follows Status.
type Dimension struct {
	ID             DimensionID     `json:"id"`
	Name           string          `json:"name"`
	NameIncomplete string          `json:"name_incomplete"`
	Status         DimensionStatus `json:"status"`
	Icon           string          `json:"icon"`
}

func (d Dimension) Complete() bool { return d.Status == StatusComplete }

// Label returns the label matching the current status.
func (d Dimension) Label() string {
	if d.Complete() {
		return d.Name
	}
	return d.NameIncomplete
}

type dimensionDef struct {
	id             DimensionID
	name           string
	nameIncomplete string
	standard       string
	direction      string
	fallback       string // %s is the anchored idea excerpt
}

// canonicalDimensions is the fixed evaluation order.
var canonicalDimensions = []dimensionDef{
	{
		id: DimConceptClarity, name: "概念清晰", nameIncomplete: "阐明概念",
		standard:  "用户的核心观点明确，没有模糊或歧义的表达",
		direction: "你提到了[概念]，它和[原始想法]是什么关系？",
		fallback:  "关于「%s」，你最想表达的核心观点是什么？",
	},
	{
		id: DimMotivation, name: "动机明确", nameIncomplete: "挖掘动机",
		standard:  "用户说明了为什么关注这个想法",
		direction: "这个想法对你来说意味着什么？为什么你会关注这个？",
		fallback:  "「%s」这个想法对你来说意味着什么？为什么你会关注它？",
	},
	{
		id: DimEvidence, name: "证据充足", nameIncomplete: "补充证据",
		standard:  "用户给出了支撑观点的现象、经历或例子",
		direction: "你为什么这么认为？看到了什么现象？",
		fallback:  "你为什么会觉得「%s」？看到了什么现象或经历？",
	},
	{
		id: DimApplication, name: "应用场景", nameIncomplete: "寻找应用",
		standard:  "用户说明了这个想法能用在哪里、指导什么行动",
		direction: "这个观察对你有什么用？是要指导行动，还是提醒注意什么？",
		fallback:  "「%s」对你有什么用？是要指导行动，还是提醒你注意什么？",
	},
	{
		id: DimConsistency, name: "前后一致", nameIncomplete: "澄清矛盾",
		standard:  "用户前后的说法没有矛盾",
		direction: "你刚才说的X，和[原始想法]好像有点不一致？",
		fallback:  "你后面的说法和「%s」好像有点不一致，能再说说吗？",
	},
	{
		id: DimLogicalCoherence, name: "逻辑连贯", nameIncomplete: "补充逻辑",
		standard:  "从现象到结论的推导没有明显跳跃",
		direction: "从A到B之间好像有个跳跃，中间是怎么推导的？",
		fallback:  "从你看到的现象到「%s」，中间是怎么推导出来的？",
	},
}

// rawDimension is a dimension entry as emitted by the model; any field may
// be missing or wrong.
type rawDimension struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NameIncomplete string `json:"name_incomplete"`
	Status         string `json:"status"`
	Icon           string `json:"icon"`
}

func (r rawDimension) complete() bool {
	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case string(StatusComplete):
		return true
	case "":
		return strings.TrimSpace(r.Icon) == IconComplete
	}
	return false
}

// newDimension builds the canonical entry for def in the given state.
func newDimension(def dimensionDef, complete bool) Dimension {
	d := Dimension{ID: def.id, Name: def.name, NameIncomplete: def.nameIncomplete}
	if complete {
		d.Status, d.Icon = StatusComplete, IconComplete
	} else {
		d.Status, d.Icon = StatusIncomplete, IconIncomplete
	}
	return d
}

// AllDimensions returns the six canonical dimensions in the given state.
func AllDimensions(complete bool) []Dimension {
	out := make([]Dimension, len(canonicalDimensions))
	for i, def := range canonicalDimensions {
		out[i] = newDimension(def, complete)
	}
	return out
}

// normalizeDimensions maps model output onto the canonical six. Entries are
// matched by id, complete label or incomplete label, then by position.
// Anything unmatched or unparseable is incomplete.
func normalizeDimensions(raw []rawDimension) []Dimension {
	state := make([]*bool, len(canonicalDimensions))
	var unmatched []int
	for i, r := range raw {
		idx := dimensionIndex(r)
		if idx < 0 {
			unmatched = append(unmatched, i)
			continue
		}
		if state[idx] == nil {
			v := r.complete()
			state[idx] = &v
		}
	}
	for _, i := range unmatched {
		if i < len(state) && state[i] == nil {
			v := raw[i].complete()
			state[i] = &v
		}
	}

	out := make([]Dimension, len(canonicalDimensions))
	for i, def := range canonicalDimensions {
		out[i] = newDimension(def, state[i] != nil && *state[i])
	}
	return out
}

func dimensionIndex(r rawDimension) int {
	id := strings.ToLower(strings.TrimSpace(r.ID))
	name := strings.TrimSpace(r.Name)
	nameIncomplete := strings.TrimSpace(r.NameIncomplete)
	for i, def := range canonicalDimensions {
		if id != "" && id == string(def.id) {
			return i
		}
	}
	for i, def := range canonicalDimensions {
		if name == def.name || name == def.nameIncomplete ||
			nameIncomplete == def.nameIncomplete || nameIncomplete == def.name {
			return i
		}
	}
	return -1
}

// firstIncomplete returns the index of the first incomplete dimension or -1.
func firstIncomplete(dims []Dimension) int {
	for i, d := range dims {
		if !d.Complete() {
			return i
		}
	}
	return -1
}

func fallbackQuestion(idx int, ideaContent string) string {
	return fmt.Sprintf(canonicalDimensions[idx].fallback, excerpt(ideaContent, 20))
}

func excerpt(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
