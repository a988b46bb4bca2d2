package ai

import (
	"errors"
	"time"

	"github.com/ideaflow/server/internal/models"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrQuotaExceeded    = errors.New("今日额度已用完，请明天再试")
	ErrSynthesisFailure = errors.New("笔记生成失败，请重试")
)

// inputError carries a user-facing validation message and matches
// ErrInvalidInput.
type inputError string

func (e inputError) Error() string        { return string(e) }
func (e inputError) Is(target error) bool { return target == ErrInvalidInput }

const (
	maxContentRunes = 5000

	msgEmptyContent      = "内容不能为空"
	msgContentTooLong    = "内容过长（最多5000字）"
	msgBadTranscript     = "对话历史格式错误"
	msgMissingIdeaSource = "缺少原始想法内容"
)

// Turn is one transcript entry as seen by the AI stages.
type Turn struct {
	ID        string              `json:"id,omitempty"`
	Role      models.TurnRole     `json:"role"`
	Content   string              `json:"content"`
	Timestamp *time.Time          `json:"timestamp,omitempty"`
	Metadata  models.TurnMetadata `json:"metadata"`
}

// TurnsFromModels converts persisted turns to the AI transcript form.
func TurnsFromModels(rows []models.ConversationTurn) []Turn {
	turns := make([]Turn, 0, len(rows))
	for i := range rows {
		row := rows[i]
		ts := row.Timestamp
		turns = append(turns, Turn{
			ID:        row.ID,
			Role:      row.Role,
			Content:   row.Content,
			Timestamp: &ts,
			Metadata:  row.Metadata,
		})
	}
	return turns
}

// NoteDraft is the structured output of the synthesis stage.
type NoteDraft struct {
	Title             string   `json:"title"`
	CoreContent       string   `json:"core_content"`
	SupportingReasons []string `json:"supporting_reasons"`
	Importance        string   `json:"importance"`
	Applications      string   `json:"applications"`
	Source            string   `json:"source"`
	Tags              []string `json:"tags"`
}

type Reflection struct {
	Text       string
	TokensUsed int
}

type Synthesis struct {
	Note       NoteDraft
	TokensUsed int
}

// clarifyEnvelope is the JSON the dialogue prompt asks the model to emit.
type clarifyEnvelope struct {
	Progress *struct {
		Dimensions []rawDimension `json:"dimensions"`
	} `json:"progress"`
	Question        string `json:"question"`
	TargetDimension string `json:"target_dimension"`
	ReadyForNote    bool   `json:"ready_for_note"`
}

type reflectDTO struct {
	Content string `json:"content"`
}
