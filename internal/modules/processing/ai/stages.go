package ai

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/processing/completion"
	"go.uber.org/zap"
)

// Reflector paraphrases a fresh idea back to its author.
type Reflector struct {
	completer completion.Completer
}

func NewReflector(completer completion.Completer) *Reflector {
	return &Reflector{completer: completer}
}

func (r *Reflector) Reflect(ctx context.Context, ideaContent string) (*Reflection, error) {
	resp, err := r.completer.Complete(ctx, []completion.Message{
		completion.System(reflectSystemPrompt),
		completion.User(buildReflectPrompt(ideaContent)),
	}, completion.Options{})
	if err != nil {
		return nil, err
	}
	return &Reflection{Text: strings.TrimSpace(resp.Text), TokensUsed: resp.TokensUsed}, nil
}

// Synthesizer turns a finished transcript into a note draft.
type Synthesizer struct {
	completer completion.Completer
	logger    *zap.Logger
}

func NewSynthesizer(completer completion.Completer, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{completer: completer, logger: logger}
}

// Synthesize returns ErrSynthesisFailure when the reply carries no usable
// draft; callers must not persist anything in that case.
func (s *Synthesizer) Synthesize(ctx context.Context, transcript []Turn) (*Synthesis, error) {
	resp, err := s.completer.Complete(ctx, []completion.Message{
		completion.System(synthesizeSystemPrompt),
		completion.User(buildSynthesizePrompt(transcript)),
	}, completion.Options{Temperature: completion.Temperature(0.5)})
	if err != nil {
		return nil, err
	}

	draft, err := Parse[NoteDraft](resp.Text)
	if err != nil {
		var failure *ParseFailure
		if errors.As(err, &failure) {
			s.logger.Info("synthesis reply is not json", zap.String("reason", failure.Reason))
		}
		return nil, ErrSynthesisFailure
	}
	draft = cleanDraft(draft)
	if draft.Title == "" || draft.CoreContent == "" {
		return nil, ErrSynthesisFailure
	}

	userText := userContent(transcript)
	if containsNewClaims(draft.CoreContent, userText) {
		s.logger.Warn("synthesized note may contain new claims", zap.String("title", draft.Title))
	}
	if ungrounded := ungroundedReasons(draft.SupportingReasons, userText); len(ungrounded) > 0 {
		s.logger.Warn("supporting reasons not found in transcript",
			zap.String("title", draft.Title), zap.Strings("reasons", ungrounded))
	}
	return &Synthesis{Note: draft, TokensUsed: resp.TokensUsed}, nil
}

func cleanDraft(d NoteDraft) NoteDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.CoreContent = strings.TrimSpace(d.CoreContent)
	d.Importance = strings.TrimSpace(d.Importance)
	d.Applications = strings.TrimSpace(d.Applications)
	d.Source = strings.TrimSpace(d.Source)
	d.SupportingReasons = []string(models.StringArray(d.SupportingReasons).Compact(false))
	d.Tags = []string(models.StringArray(d.Tags).Compact(true))
	return d
}

var assertionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`因此.*是`),
	regexp.MustCompile(`所以.*应该`),
	regexp.MustCompile(`这说明`),
	regexp.MustCompile(`可以看出`),
	regexp.MustCompile(`证明了`),
}

// containsNewClaims flags generated text that asserts conclusions and is
// much longer than what the user actually wrote.
func containsNewClaims(generated, userText string) bool {
	asserts := false
	for _, p := range assertionPatterns {
		if p.MatchString(generated) {
			asserts = true
			break
		}
	}
	return asserts && float64(utf8.RuneCountInString(generated)) > 1.5*float64(utf8.RuneCountInString(userText))
}

// ungroundedReasons returns reasons sharing too few character bigrams with
// the user's own words.
func ungroundedReasons(reasons []string, userText string) []string {
	source := bigrams(userText)
	var out []string
	for _, reason := range reasons {
		grams := bigrams(reason)
		if len(grams) == 0 {
			continue
		}
		hit := 0
		for g := range grams {
			if _, ok := source[g]; ok {
				hit++
			}
		}
		if float64(hit)/float64(len(grams)) < 0.3 {
			out = append(out, reason)
		}
	}
	return out
}

func bigrams(s string) map[string]struct{} {
	var runes []rune
	for _, r := range strings.ToLower(s) {
		if isKeywordRune(r) {
			runes = append(runes, r)
		}
	}
	out := make(map[string]struct{}, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])] = struct{}{}
	}
	return out
}

func userContent(transcript []Turn) string {
	parts := make([]string, 0, len(transcript))
	for _, t := range transcript {
		if t.Role == models.RoleUser {
			parts = append(parts, t.Content)
		}
	}
	return strings.Join(parts, " ")
}
