package note

import (
	"strings"

	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/processing/ai"
)

type CreateNoteDTO struct {
	IdeaID            *string             `json:"idea_id"`
	Title             string              `json:"title"`
	CoreContent       string              `json:"core_content"`
	SupportingReasons models.StringArray  `json:"supporting_reasons"`
	Importance        string              `json:"importance"`
	Applications      string              `json:"applications"`
	Source            string              `json:"source"`
	Tags              models.StringArray  `json:"tags"`
	RelatedNotes      models.RelatedNotes `json:"related_notes"`
}

// FromDraft converts a synthesized draft bound to ideaID.
func FromDraft(ideaID string, d ai.NoteDraft) CreateNoteDTO {
	return CreateNoteDTO{
		IdeaID:            &ideaID,
		Title:             d.Title,
		CoreContent:       d.CoreContent,
		SupportingReasons: models.StringArray(d.SupportingReasons),
		Importance:        d.Importance,
		Applications:      d.Applications,
		Source:            d.Source,
		Tags:              models.StringArray(d.Tags),
	}
}

type UpdateNoteDTO struct {
	Title             *string              `json:"title"`
	CoreContent       *string              `json:"core_content"`
	SupportingReasons *models.StringArray  `json:"supporting_reasons"`
	Importance        *string              `json:"importance"`
	Applications      *string              `json:"applications"`
	Source            *string              `json:"source"`
	Tags              *models.StringArray  `json:"tags"`
	RelatedNotes      *models.RelatedNotes `json:"related_notes"`
}

func (d UpdateNoteDTO) empty() bool {
	return d.Title == nil && d.CoreContent == nil && d.SupportingReasons == nil &&
		d.Importance == nil && d.Applications == nil && d.Source == nil &&
		d.Tags == nil && d.RelatedNotes == nil
}

// compactRelated drops entries without an id and repeated ids.
func compactRelated(in models.RelatedNotes) models.RelatedNotes {
	out := make(models.RelatedNotes, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, models.RelatedNote{ID: id, Relationship: strings.TrimSpace(r.Relationship)})
	}
	return out
}
