package idea

import "github.com/ideaflow/server/internal/models"

// CreateIdeaDTO is the request body for capturing an idea.
type CreateIdeaDTO struct {
	Content string `json:"content"`
}

// UpdateIdeaDTO is a partial update; nil fields are left unchanged.
type UpdateIdeaDTO struct {
	Title   *string            `json:"title"`
	Content *string            `json:"content"`
	Status  *models.IdeaStatus `json:"status"`
}

func (d UpdateIdeaDTO) empty() bool {
	return d.Title == nil && d.Content == nil && d.Status == nil
}
