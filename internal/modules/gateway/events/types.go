package events

import (
	"context"
	"time"
)

const (
	redisChannel     = "ideaflow:events"
	subscriberBuffer = 32
)

const (
	TypeIdeaCreated         = "idea.created"
	TypeIdeaUpdated         = "idea.updated"
	TypeIdeaDeleted         = "idea.deleted"
	TypeNoteCreated         = "note.created"
	TypeNoteUpdated         = "note.updated"
	TypeNoteDeleted         = "note.deleted"
	TypeConversationCreated = "conversation.created"
)

// Event tells a user's clients that one of their records changed.
type Event struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
}

// Publisher is implemented by Hub; services depend on this.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Emit publishes through p when it is non-nil.
func Emit(ctx context.Context, p Publisher, typ, userID, id string) {
	if p == nil {
		return
	}
	p.Publish(ctx, Event{Type: typ, UserID: userID, ID: id, At: time.Now()})
}
