package ai

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/processing/completion"
	"github.com/stretchr/testify/require"
)

// scripted replays canned replies in order and records every request.
type scripted struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]completion.Message
	opts    []completion.Options
}

func (s *scripted) Complete(_ context.Context, messages []completion.Message, opts completion.Options) (*completion.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, messages)
	s.opts = append(s.opts, opts)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return &completion.Completion{Text: "", TokensUsed: 0}, nil
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return &completion.Completion{Text: reply, TokensUsed: 42}, nil
}

func (s *scripted) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scripted) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.calls[len(s.calls)-1]
	return msgs[len(msgs)-1].Content
}

// envelope builds a clarify reply with the given dimension ids complete.
func envelope(t *testing.T, question, target string, ready bool, complete ...DimensionID) string {
	t.Helper()
	done := map[DimensionID]bool{}
	for _, id := range complete {
		done[id] = true
	}
	dims := make([]map[string]string, 0, len(canonicalDimensions))
	for _, def := range canonicalDimensions {
		status := "incomplete"
		if done[def.id] {
			status = "complete"
		}
		dims = append(dims, map[string]string{
			"name":            def.name,
			"name_incomplete": def.nameIncomplete,
			"status":          status,
		})
	}
	b, err := json.Marshal(map[string]any{
		"progress":         map[string]any{"dimensions": dims},
		"question":         question,
		"target_dimension": target,
		"ready_for_note":   ready,
	})
	require.NoError(t, err)
	return "```json\n" + string(b) + "\n```"
}

func user(content string) Turn      { return Turn{Role: models.RoleUser, Content: content} }
func assistant(content string) Turn { return Turn{Role: models.RoleAssistant, Content: content} }

type stubGovernor struct {
	mu      sync.Mutex
	allow   bool
	records []int
}

func (g *stubGovernor) Allow(context.Context, string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allow
}

func (g *stubGovernor) Record(_ context.Context, _ string, tokens int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = append(g.records, tokens)
}
