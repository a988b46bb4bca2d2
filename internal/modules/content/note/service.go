// Package note manages the structured notes synthesized from ideas.
package note

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/content/idea"
	"github.com/ideaflow/server/internal/modules/gateway/events"
	"github.com/ideaflow/server/internal/modules/processing/ai"
	"github.com/ideaflow/server/internal/pkg/pagination"
	"github.com/ideaflow/server/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("笔记不存在")
	ErrEmptyTitle    = errors.New("标题不能为空")
	ErrEmptyPatch    = errors.New("没有有效的更新字段")
	ErrInvalidFilter = errors.New("无效的状态")
)

// Ideas is the part of the idea service notes depend on.
type Ideas interface {
	Get(ctx context.Context, userID, id string) (*models.IdeaModel, error)
	SetStatusTx(ctx context.Context, tx *gorm.DB, userID, id string, status models.IdeaStatus) error
}

var _ Ideas = (*idea.Service)(nil)

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

// List pages the user's notes. With status "archived" only notes of archived
// ideas are returned; otherwise those are hidden.
func (s *Service) List(ctx context.Context, userID, status string, q pagination.Query) ([]models.NoteModel, response.Pagination, error) {
	archived := s.db.Model(&models.IdeaModel{}).
		Select("id").
		Where("user_id = ? AND status = ?", userID, models.IdeaStatusArchived)

	tx := s.db.WithContext(ctx).Model(&models.NoteModel{}).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	switch status {
	case "":
		tx = tx.Where("idea_id IS NULL OR idea_id NOT IN (?)", archived)
	case string(models.IdeaStatusArchived):
		tx = tx.Where("idea_id IN (?)", archived)
	default:
		return nil, response.Pagination{}, ErrInvalidFilter
	}

	var notes []models.NoteModel
	pag, err := pagination.Paginate(tx, q, &notes)
	return notes, pag, err
}

func (s *Service) Get(ctx context.Context, userID, id string) (*models.NoteModel, error) {
	var n models.NoteModel
	err := s.db.WithContext(ctx).First(&n, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Create stores a note. When it is bound to an idea the idea moves to the
// notebook.
func (s *Service) Create(ctx context.Context, userID string, dto CreateNoteDTO) (*models.NoteModel, error) {
	if dto.IdeaID != nil && *dto.IdeaID != "" {
		if _, err := s.ideas.Get(ctx, userID, *dto.IdeaID); err != nil {
			return nil, err
		}
	}
	var created *models.NoteModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.CreateTx(ctx, tx, userID, dto, models.IdeaStatusNotebook)
		created = n
		return err
	})
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, events.TypeNoteCreated, userID, created.ID)
	return created, nil
}

// SaveSynthesized stores a synthesized draft for ideaID and marks the idea
// completed in the same transaction.
func (s *Service) SaveSynthesized(ctx context.Context, userID, ideaID string, draft ai.NoteDraft) (*models.NoteModel, error) {
	var created *models.NoteModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.CreateTx(ctx, tx, userID, FromDraft(ideaID, draft), models.IdeaStatusCompleted)
		created = n
		return err
	})
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, events.TypeNoteCreated, userID, created.ID)
	return created, nil
}

// CreateTx inserts the note inside tx and moves its idea, if any, to
// ideaStatus. The idea must already be resolved by the caller.
func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, userID string, dto CreateNoteDTO, ideaStatus models.IdeaStatus) (*models.NoteModel, error) {
	title := strings.TrimSpace(dto.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	n := models.NoteModel{
		OwnedBase:         models.OwnedBase{UserID: userID},
		Code:              ai.StampedTitle(s.now(), title),
		Title:             title,
		CoreContent:       strings.TrimSpace(dto.CoreContent),
		SupportingReasons: dto.SupportingReasons.Compact(false),
		Importance:        strings.TrimSpace(dto.Importance),
		Applications:      strings.TrimSpace(dto.Applications),
		Source:            strings.TrimSpace(dto.Source),
		Tags:              dto.Tags.Compact(true),
		RelatedNotes:      compactRelated(dto.RelatedNotes),
	}
	if dto.IdeaID != nil && *dto.IdeaID != "" {
		ideaID := *dto.IdeaID
		n.IdeaID = &ideaID
	}
	if err := tx.Create(&n).Error; err != nil {
		return nil, err
	}
	if n.IdeaID != nil {
		if err := s.ideas.SetStatusTx(ctx, tx, userID, *n.IdeaID, ideaStatus); err != nil {
			return nil, err
		}
	}
	return &n, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, dto UpdateNoteDTO) (*models.NoteModel, error) {
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
	setText := func(col string, v *string) {
		if v != nil {
			updates[col] = strings.TrimSpace(*v)
		}
	}
	setText("core_content", dto.CoreContent)
	setText("importance", dto.Importance)
	setText("applications", dto.Applications)
	setText("source", dto.Source)
	if dto.SupportingReasons != nil {
		updates["supporting_reasons"] = dto.SupportingReasons.Compact(false)
	}
	if dto.Tags != nil {
		updates["tags"] = dto.Tags.Compact(true)
	}
	if dto.RelatedNotes != nil {
		updates["related_notes"] = compactRelated(*dto.RelatedNotes)
	}

	n, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(n).Updates(updates).Error; err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, events.TypeNoteUpdated, userID, id)
	return s.Get(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.NoteModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	events.Emit(ctx, s.events, events.TypeNoteDeleted, userID, id)
	return nil
}
