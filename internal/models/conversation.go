package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
	RoleSystem    TurnRole = "system"
)

func (r TurnRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// TurnMetadata is optional per-turn context. Direction carries the targeted
// dimension id; DirectionStatus its completion tag.
type TurnMetadata struct {
	QuotedText      string `json:"quotedText,omitempty"`
	MessageID       string `json:"messageId,omitempty"`
	Direction       string `json:"direction,omitempty"`
	DirectionStatus string `json:"direction_status,omitempty"`
}

func (m TurnMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *TurnMetadata) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = TurnMetadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models.TurnMetadata: unsupported Scan type %T", value)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*m = TurnMetadata{}
		return nil
	}
	return json.Unmarshal(raw, m)
}

// ConversationTurn is one append-only entry of an idea's transcript.
type ConversationTurn struct {
	Base
	IdeaID    string       `json:"idea_id"   gorm:"type:char(36);index:idx_turn_order,priority:1;not null"`
	Role      TurnRole     `json:"role"      gorm:"size:16;not null"`
	Content   string       `json:"content"   gorm:"type:text;not null"`
	Timestamp time.Time    `json:"timestamp" gorm:"index:idx_turn_order,priority:2;not null"`
	Metadata  TurnMetadata `json:"metadata"  gorm:"type:text"`
}

func (ConversationTurn) TableName() string { return "conversations" }
