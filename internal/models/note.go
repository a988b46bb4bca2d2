package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RelatedNote links a note to another one with a free-form relationship label.
type RelatedNote struct {
	ID           string `json:"id"`
	Relationship string `json:"relationship"`
}

type RelatedNotes []RelatedNote

func (r RelatedNotes) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]RelatedNote(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *RelatedNotes) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*r = RelatedNotes{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models.RelatedNotes: unsupported Scan type %T", value)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*r = RelatedNotes{}
		return nil
	}
	var out []RelatedNote
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*r = out
	return nil
}

// NoteModel is the structured result of a synthesized dialogue.
type NoteModel struct {
	OwnedBase
	IdeaID            *string      `json:"idea_id"            gorm:"type:char(36);index"`
	Code              string       `json:"code"               gorm:"size:64;index"`
	Title             string       `json:"title"              gorm:"not null"`
	CoreContent       string       `json:"core_content"       gorm:"type:text"`
	SupportingReasons StringArray  `json:"supporting_reasons" gorm:"type:text"`
	Importance        string       `json:"importance"         gorm:"type:text"`
	Applications      string       `json:"applications"       gorm:"type:text"`
	Source            string       `json:"source"             gorm:"type:text"`
	Tags              StringArray  `json:"tags"               gorm:"type:text"`
	RelatedNotes      RelatedNotes `json:"related_notes"      gorm:"type:text"`
}

func (NoteModel) TableName() string { return "notes" }
