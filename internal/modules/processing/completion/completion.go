// Package completion is the uniform call interface to the configured
// text-completion backends.
package completion

import (
	"context"
	"errors"
)

// ErrUpstreamUnavailable covers backend errors, timeouts, an open circuit and
// empty or malformed envelopes. Its text is shown to users verbatim.
var ErrUpstreamUnavailable = errors.New("AI 服务暂时不可用，请稍后再试")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Options tunes a single call. Zero values fall back to the configured defaults.
type Options struct {
	Temperature *float64
	MaxTokens   int
}

// Temperature returns a pointer for Options.Temperature.
func Temperature(v float64) *float64 { return &v }

type Completion struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
}

// Completer is implemented by Gateway and by test stubs.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, messages []Message, opts Options) (*Completion, error)

func (f CompleterFunc) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	return f(ctx, messages, opts)
}

// backend talks to one provider API. tokens is 0 when the API omits usage.
type backend interface {
	complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (text string, tokens int, err error)
}

func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
