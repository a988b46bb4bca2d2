package ai

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/ideaflow/server/internal/modules/processing/completion"
	"go.uber.org/zap"
)

const (
	titleMaxRunes   = 20
	keywordMaxRunes = 20
	stampLayout     = "20060102-1504"
)

// Titler names new ideas. It never fails: any completion problem falls back
// to the leading words of the content.
type Titler struct {
	completer completion.Completer
	logger    *zap.Logger
}

func NewTitler(completer completion.Completer, logger *zap.Logger) *Titler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Titler{completer: completer, logger: logger}
}

func (t *Titler) Title(ctx context.Context, content string) string {
	if t.completer != nil {
		resp, err := t.completer.Complete(ctx, []completion.Message{
			completion.System(titleSystemPrompt),
			completion.User(titlePromptPrefix + content),
		}, completion.Options{Temperature: completion.Temperature(0.5), MaxTokens: 50})
		if err == nil {
			if title := cleanTitle(resp.Text); title != "" {
				return title
			}
		} else {
			t.logger.Warn("title generation failed", zap.Error(err))
		}
	}
	return fallbackTitle(content)
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, "\"'“”‘’「」《》")
	title = strings.TrimSpace(title)
	return truncateRunes(title, titleMaxRunes)
}

func fallbackTitle(content string) string {
	return truncateRunes(strings.Join(strings.Fields(content), " "), titleMaxRunes)
}

// StampedTitle prefixes the keyword of text with the minute it was taken,
// e.g. 20240501-0930-早起让我更专注.
func StampedTitle(now time.Time, text string) string {
	return now.Format(stampLayout) + "-" + Keyword(text)
}

// Keyword keeps CJK characters, ASCII letters and digits.
func Keyword(text string) string {
	var b strings.Builder
	n := 0
	for _, r := range text {
		if n >= keywordMaxRunes {
			break
		}
		if isKeywordRune(r) {
			b.WriteRune(r)
			n++
		}
	}
	return b.String()
}

func isKeywordRune(r rune) bool {
	if r < unicode.MaxASCII {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
	}
	return unicode.Is(unicode.Han, r)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
