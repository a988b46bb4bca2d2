// Package organize drives an idea through reflection, clarification and
// synthesis on the server, persisting every turn.
package organize

import (
	"context"
	"errors"

	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/content/conversation"
	"github.com/ideaflow/server/internal/modules/content/idea"
	"github.com/ideaflow/server/internal/modules/content/note"
	"github.com/ideaflow/server/internal/modules/processing/ai"
	"go.uber.org/zap"
)

var (
	ErrCompleted  = errors.New("该想法已整理完成")
	ErrNotReady   = errors.New("对话尚未完成，暂不能生成笔记")
	ErrNotStarted = errors.New("请先开始整理，等待复述完成")
)

// Session is the persisted state of one organize dialogue.
type Session struct {
	Idea       *models.IdeaModel         `json:"idea"`
	State      ai.State                  `json:"state"`
	Transcript []models.ConversationTurn `json:"conversations"`
}

// TurnResult is what one user turn produced. Note is set once the dialogue
// reached synthesis.
type TurnResult struct {
	UserTurn      *models.ConversationTurn `json:"user_turn"`
	AssistantTurn *models.ConversationTurn `json:"assistant_turn"`
	Advance       *ai.Advance              `json:"-"`
	Note          *models.NoteModel        `json:"note"`
}

type Service struct {
	ideas  *idea.Service
	turns  *conversation.Service
	notes  *note.Service
	ai     *ai.Service
	logger *zap.Logger
}

func NewService(ideas *idea.Service, turns *conversation.Service, notes *note.Service, aiSvc *ai.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{ideas: ideas, turns: turns, notes: notes, ai: aiSvc, logger: logger}
}

// Start opens the dialogue. The reflection is generated once; later calls
// only report the current state.
func (s *Service) Start(ctx context.Context, userID, ideaID string) (*Session, error) {
	it, err := s.ideas.Get(ctx, userID, ideaID)
	if err != nil {
		return nil, err
	}
	rows, err := s.turns.Transcript(ctx, ideaID)
	if err != nil {
		return nil, err
	}

	state := ai.StateOf(ai.TurnsFromModels(rows))
	if state == ai.StateAwaitingReflection && it.Status != models.IdeaStatusCompleted {
		if err := s.ai.CheckQuota(ctx, userID); err != nil {
			return nil, err
		}
		reflection, err := s.ai.Reflect(ctx, userID, it.Content)
		if err != nil {
			return nil, err
		}
		turn, err := s.turns.Append(ctx, userID, ideaID, models.RoleAssistant, reflection.Text, models.TurnMetadata{})
		if err != nil {
			return nil, err
		}
		rows = append(rows, *turn)
		state = ai.StateClarifying
		s.logger.Debug("organize started", zap.String("idea_id", ideaID), zap.Int("tokens", reflection.TokensUsed))
	}
	return &Session{Idea: it, State: state, Transcript: rows}, nil
}

// Turn appends the user's message and the assistant's answer. When the
// dialogue becomes ready the note is synthesized and the idea completed.
func (s *Service) Turn(ctx context.Context, userID, ideaID, content string, meta models.TurnMetadata) (*TurnResult, error) {
	it, err := s.ideas.Get(ctx, userID, ideaID)
	if err != nil {
		return nil, err
	}
	if it.Status == models.IdeaStatusCompleted {
		return nil, ErrCompleted
	}
	if err := s.ai.CheckQuota(ctx, userID); err != nil {
		return nil, err
	}
	if err := ai.ValidateContent(content); err != nil {
		return nil, err
	}
	rows, err := s.turns.Transcript(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	if ai.StateOf(ai.TurnsFromModels(rows)) == ai.StateAwaitingReflection {
		return nil, ErrNotStarted
	}

	userTurn, err := s.turns.Append(ctx, userID, ideaID, models.RoleUser, content, meta)
	if err != nil {
		return nil, err
	}
	rows = append(rows, *userTurn)

	advance, err := s.ai.Clarify(ctx, userID, it.Content, ai.TurnsFromModels(rows))
	if err != nil {
		return nil, err
	}
	assistantTurn, err := s.turns.Append(ctx, userID, ideaID, models.RoleAssistant, advance.Question, models.TurnMetadata{
		Direction:       advance.TargetDimension,
		DirectionStatus: advance.DirectionStatus(),
	})
	if err != nil {
		return nil, err
	}

	result := &TurnResult{UserTurn: userTurn, AssistantTurn: assistantTurn, Advance: advance}
	if !advance.ReadyForNote {
		return result, nil
	}

	// Synthesis is a second completion call; the turn stays ready for Save.
	if err := s.ai.CheckQuota(ctx, userID); err != nil {
		return result, err
	}
	rows = append(rows, *assistantTurn)
	n, err := s.synthesize(ctx, userID, ideaID, rows)
	if err != nil {
		return result, err
	}
	result.Note = n
	return result, nil
}

// Save retries synthesis for a dialogue that is ready but has no note yet.
func (s *Service) Save(ctx context.Context, userID, ideaID string) (*models.NoteModel, error) {
	it, err := s.ideas.Get(ctx, userID, ideaID)
	if err != nil {
		return nil, err
	}
	if it.Status == models.IdeaStatusCompleted {
		return nil, ErrCompleted
	}
	if err := s.ai.CheckQuota(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.turns.Transcript(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	if ai.StateOf(ai.TurnsFromModels(rows)) != ai.StateReady {
		return nil, ErrNotReady
	}
	return s.synthesize(ctx, userID, ideaID, rows)
}

func (s *Service) synthesize(ctx context.Context, userID, ideaID string, rows []models.ConversationTurn) (*models.NoteModel, error) {
	out, err := s.ai.Synthesize(ctx, userID, ai.TurnsFromModels(rows))
	if err != nil {
		return nil, err
	}
	n, err := s.notes.SaveSynthesized(ctx, userID, ideaID, out.Note)
	if err != nil {
		return nil, err
	}
	s.logger.Info("note synthesized",
		zap.String("idea_id", ideaID),
		zap.String("note_id", n.ID),
		zap.Int("tokens", out.TokensUsed),
	)
	return n, nil
}
