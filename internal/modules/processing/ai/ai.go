// Package ai hosts the idea clarification pipeline: reflection, the
// dialogue policy engine, synthesis and title generation, all gated by the
// per-user usage governor.
package ai

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/ideaflow/server/internal/modules/processing/completion"
	"github.com/ideaflow/server/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Governor is the usage quota seen by the AI stages. Implementations fail
// open: store errors must not deny a request.
type Governor interface {
	Allow(ctx context.Context, userID string) bool
	Record(ctx context.Context, userID string, tokens int)
}

// Completers routes each stage to its completion backend.
type Completers struct {
	Title     completion.Completer
	Dialogue  completion.Completer
	Synthesis completion.Completer
}

// CompletersFromSet uses the dialogue gateway for reflection too.
func CompletersFromSet(set *completion.Set) Completers {
	return Completers{Title: set.Title, Dialogue: set.Dialogue, Synthesis: set.Synthesis}
}

type Service struct {
	governor    Governor
	reflector   *Reflector
	engine      *Engine
	synthesizer *Synthesizer
	titler      *Titler
	logger      *zap.Logger
}

func NewService(c Completers, governor Governor, intent SaveIntentDetector, collector *metrics.Collector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		governor:    governor,
		reflector:   NewReflector(c.Dialogue),
		engine:      NewEngine(c.Dialogue, intent, collector, logger),
		synthesizer: NewSynthesizer(c.Synthesis, logger),
		titler:      NewTitler(c.Title, logger),
		logger:      logger,
	}
}

// CheckQuota returns ErrQuotaExceeded when the user has no requests left today.
func (s *Service) CheckQuota(ctx context.Context, userID string) error {
	if s.governor != nil && !s.governor.Allow(ctx, userID) {
		return ErrQuotaExceeded
	}
	return nil
}

func (s *Service) record(ctx context.Context, userID string, tokens int) {
	if s.governor != nil {
		s.governor.Record(ctx, userID, tokens)
	}
}

// Reflect runs the paraphrase step. Quota is checked by the caller.
func (s *Service) Reflect(ctx context.Context, userID, content string) (*Reflection, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	out, err := s.reflector.Reflect(ctx, content)
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, out.TokensUsed)
	return out, nil
}

// Clarify advances the dialogue by one turn. Usage is recorded whenever a
// completion ran, including replies that could not be parsed.
func (s *Service) Clarify(ctx context.Context, userID, ideaContent string, transcript []Turn) (*Advance, error) {
	if strings.TrimSpace(ideaContent) == "" {
		return nil, inputError(msgMissingIdeaSource)
	}
	if err := ValidateTranscript(transcript); err != nil {
		return nil, err
	}
	out, err := s.engine.Advance(ctx, ideaContent, transcript)
	if err != nil {
		return nil, err
	}
	if out.Called {
		s.record(ctx, userID, out.TokensUsed)
	}
	return out, nil
}

// Synthesize builds a note draft. Usage is recorded only for a usable draft.
func (s *Service) Synthesize(ctx context.Context, userID string, transcript []Turn) (*Synthesis, error) {
	if err := ValidateTranscript(transcript); err != nil {
		return nil, err
	}
	out, err := s.synthesizer.Synthesize(ctx, transcript)
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, out.TokensUsed)
	return out, nil
}

// Title is not metered.
func (s *Service) Title(ctx context.Context, content string) string {
	return s.titler.Title(ctx, content)
}

func ValidateContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return inputError(msgEmptyContent)
	}
	if utf8.RuneCountInString(trimmed) > maxContentRunes {
		return inputError(msgContentTooLong)
	}
	return nil
}

func ValidateTranscript(transcript []Turn) error {
	for _, t := range transcript {
		if !t.Role.Valid() {
			return inputError(msgBadTranscript)
		}
	}
	return nil
}
