package idea

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/gateway/events"
	"github.com/ideaflow/server/internal/modules/processing/ai"
	"github.com/ideaflow/server/internal/pkg/pagination"
	"github.com/ideaflow/server/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("想法不存在")
	ErrEmptyPatch    = errors.New("没有有效的更新字段")
	ErrInvalidStatus = errors.New("无效的状态")
	ErrEmptyTitle    = errors.New("标题不能为空")
)

// Titler names a new idea from its content.
type Titler interface {
	Title(ctx context.Context, content string) string
}

type Service struct {
	db     *gorm.DB
	titler Titler
	events events.Publisher
	now    func() time.Time
	logger *zap.Logger
}

func NewService(db *gorm.DB, titler Titler, publisher events.Publisher, logger *zap.Logger) *Service {
	if titler == nil {
		titler = ai.NewTitler(nil, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, titler: titler, events: publisher, now: time.Now, logger: logger}
}

func (s *Service) List(ctx context.Context, userID, status string, q pagination.Query) ([]models.IdeaModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.IdeaModel{}).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if status != "" {
		if !models.IdeaStatus(status).Valid() {
			return nil, response.Pagination{}, ErrInvalidStatus
		}
		tx = tx.Where("status = ?", status)
	}

	var ideas []models.IdeaModel
	pag, err := pagination.Paginate(tx, q, &ideas)
	return ideas, pag, err
}

// Get returns ErrNotFound for missing ideas and ideas owned by someone else.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.IdeaModel, error) {
	var idea models.IdeaModel
	err := s.db.WithContext(ctx).First(&idea, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &idea, nil
}

// Create stores a new inbox idea titled "yyyyMMdd-HHmm-<keyword>".
func (s *Service) Create(ctx context.Context, userID, content string) (*models.IdeaModel, error) {
	if err := ai.ValidateContent(content); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)

	idea := models.IdeaModel{
		OwnedBase: models.OwnedBase{UserID: userID},
		Title:     ai.StampedTitle(s.now(), s.titler.Title(ctx, content)),
		Content:   content,
		Status:    models.IdeaStatusInbox,
	}
	if err := s.db.WithContext(ctx).Create(&idea).Error; err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, events.TypeIdeaCreated, userID, idea.ID)
	return &idea, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, dto UpdateIdeaDTO) (*models.IdeaModel, error) {
	if dto.empty() {
		return nil, ErrEmptyPatch
	}
	updates := map[string]interface{}{}
	if dto.Title != nil {
		title := strings.TrimSpace(*dto.Title)
		if title == "" {
			return nil, ErrEmptyTitle
		}
		updates["title"] = title
	}
	if dto.Content != nil {
		if err := ai.ValidateContent(*dto.Content); err != nil {
			return nil, err
		}
		updates["content"] = strings.TrimSpace(*dto.Content)
	}
	if dto.Status != nil {
		if !dto.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		updates["status"] = *dto.Status
	}

	idea, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(idea).Updates(updates).Error; err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, events.TypeIdeaUpdated, userID, idea.ID)
	return s.Get(ctx, userID, id)
}

// SetStatus moves an owned idea to status.
func (s *Service) SetStatus(ctx context.Context, userID, id string, status models.IdeaStatus) error {
	return s.setStatus(ctx, s.db.WithContext(ctx), userID, id, status)
}

// SetStatusTx is SetStatus inside the caller's transaction.
func (s *Service) SetStatusTx(ctx context.Context, tx *gorm.DB, userID, id string, status models.IdeaStatus) error {
	return s.setStatus(ctx, tx, userID, id, status)
}

func (s *Service) setStatus(ctx context.Context, tx *gorm.DB, userID, id string, status models.IdeaStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	res := tx.Model(&models.IdeaModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	events.Emit(ctx, s.events, events.TypeIdeaUpdated, userID, id)
	return nil
}

// Delete removes the idea and its transcript. Notes stay but lose their
// back-reference.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("idea_id = ?", id).Delete(&models.ConversationTurn{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.NoteModel{}).
			Where("idea_id = ? AND user_id = ?", id, userID).
			Update("idea_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.IdeaModel{}).Error
	})
	if err != nil {
		return err
	}
	events.Emit(ctx, s.events, events.TypeIdeaDeleted, userID, id)
	return nil
}
