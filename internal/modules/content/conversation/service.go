// Package conversation stores the append-only transcript of each idea.
package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/content/idea"
	"github.com/ideaflow/server/internal/modules/gateway/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrMissingFields = errors.New("缺少必要参数")
	ErrInvalidRole   = errors.New("无效的角色")
)

// Ideas resolves owned ideas; *idea.Service satisfies it.
type Ideas interface {
	Get(ctx context.Context, userID, id string) (*models.IdeaModel, error)
}

type Service struct {
	db     *gorm.DB
	ideas  Ideas
	events events.Publisher
	now    func() time.Time
	logger *zap.Logger
}

func NewService(db *gorm.DB, ideas Ideas, publisher events.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, ideas: ideas, events: publisher, now: time.Now, logger: logger}
}

// List returns the idea's turns oldest first. A missing or foreign idea
// yields idea.ErrNotFound.
func (s *Service) List(ctx context.Context, userID, ideaID string) ([]models.ConversationTurn, error) {
	if _, err := s.ideas.Get(ctx, userID, ideaID); err != nil {
		return nil, err
	}
	return s.turns(s.db.WithContext(ctx), ideaID)
}

func (s *Service) turns(tx *gorm.DB, ideaID string) ([]models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	err := tx.Where("idea_id = ?", ideaID).
		Order("timestamp ASC").
		Order("created_at ASC").
		Find(&turns).Error
	return turns, err
}

// Append adds a turn after checking ownership of the idea.
func (s *Service) Append(ctx context.Context, userID, ideaID string, role models.TurnRole, content string, meta models.TurnMetadata) (*models.ConversationTurn, error) {
	if ideaID == "" || strings.TrimSpace(content) == "" {
		return nil, ErrMissingFields
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if _, err := s.ideas.Get(ctx, userID, ideaID); err != nil {
		return nil, err
	}
	return s.AppendTx(ctx, s.db.WithContext(ctx), userID, ideaID, role, content, meta)
}

// AppendTx writes a turn inside tx without the ownership check; callers
// have already resolved the idea. Timestamps strictly increase per idea so
// the transcript order is stable.
func (s *Service) AppendTx(ctx context.Context, tx *gorm.DB, userID, ideaID string, role models.TurnRole, content string, meta models.TurnMetadata) (*models.ConversationTurn, error) {
	at := s.now()
	var last models.ConversationTurn
	err := tx.Where("idea_id = ?", ideaID).Order("timestamp DESC").Limit(1).Take(&last).Error
	switch {
	case err == nil:
		if !at.After(last.Timestamp) {
			at = last.Timestamp.Add(time.Millisecond)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	turn := models.ConversationTurn{
		IdeaID:    ideaID,
		Role:      role,
		Content:   content,
		Timestamp: at,
		Metadata:  meta,
	}
	if err := tx.Create(&turn).Error; err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, events.TypeConversationCreated, userID, turn.ID)
	return &turn, nil
}

// Transcript is List without the ownership check.
func (s *Service) Transcript(ctx context.Context, ideaID string) ([]models.ConversationTurn, error) {
	return s.turns(s.db.WithContext(ctx), ideaID)
}

var _ Ideas = (*idea.Service)(nil)
