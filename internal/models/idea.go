package models

// IdeaStatus is the lifecycle state of an idea.
type IdeaStatus string

const (
	IdeaStatusInbox     IdeaStatus = "inbox"
	IdeaStatusNotebook  IdeaStatus = "notebook"
	IdeaStatusArchived  IdeaStatus = "archived"
	IdeaStatusCompleted IdeaStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s IdeaStatus) Valid() bool {
	switch s {
	case IdeaStatusInbox, IdeaStatusNotebook, IdeaStatusArchived, IdeaStatusCompleted:
		return true
	}
	return false
}

// IdeaModel is a captured rough thought.
type IdeaModel struct {
	OwnedBase
	Title   string     `json:"title"   gorm:"size:64"`
	Content string     `json:"content" gorm:"type:text;not null"`
	Status  IdeaStatus `json:"status"  gorm:"size:16;index;not null;default:inbox"`
}

func (IdeaModel) TableName() string { return "ideas" }
