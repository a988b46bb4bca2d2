package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/processing/completion"
	"github.com/ideaflow/server/internal/pkg/metrics"
	"go.uber.org/zap"
)

// State is the dialogue phase of one idea.
type State string

const (
	StateAwaitingReflection State = "awaiting-reflection"
	StateClarifying         State = "clarifying"
	StateReady              State = "ready"
)

// DirectionReady tags the assistant turn that accepted a save request.
const DirectionReady = "ready"

// StateOf derives the dialogue phase from a transcript.
func StateOf(transcript []Turn) State {
	last := lastTurnIndex(transcript, models.RoleAssistant)
	if last < 0 {
		return StateAwaitingReflection
	}
	if transcript[last].Metadata.DirectionStatus == DirectionReady {
		return StateReady
	}
	return StateClarifying
}

// Advance is the outcome of one dialogue turn. Dimensions is nil when the
// model reply could not be parsed.
type Advance struct {
	Dimensions      []Dimension `json:"dimensions"`
	Question        string      `json:"question"`
	TargetDimension string      `json:"target_dimension,omitempty"`
	ReadyForNote    bool        `json:"ready_for_note"`
	TokensUsed      int         `json:"tokens_used"`

	// Called is false when the save-intent check answered without a
	// completion call.
	Called bool `json:"-"`
}

// State reports the phase the dialogue is in after this turn.
func (a *Advance) State() State {
	if a.ReadyForNote {
		return StateReady
	}
	return StateClarifying
}

// DirectionStatus is the per-dimension completion tag stored on the
// assistant turn.
func (a *Advance) DirectionStatus() string {
	switch {
	case a.ReadyForNote:
		return DirectionReady
	case a.Dimensions == nil:
		return ""
	case a.TargetDimension == TargetConfirm:
		return string(StatusComplete)
	}
	return string(StatusIncomplete)
}

// Engine runs the clarification policy. It holds no per-idea state; every
// call is a function of the idea content and the full transcript.
type Engine struct {
	completer completion.Completer
	intent    SaveIntentDetector
	metrics   *metrics.Collector
	logger    *zap.Logger
}

func NewEngine(completer completion.Completer, intent SaveIntentDetector, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if intent == nil {
		intent = PhraseDetector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{completer: completer, intent: intent, metrics: collector, logger: logger}
}

// Advance evaluates the transcript and returns the next question.
func (e *Engine) Advance(ctx context.Context, ideaContent string, transcript []Turn) (*Advance, error) {
	offered := offerPending(transcript)
	if offered && e.intent.DetectSaveIntent(transcript) {
		e.metrics.ObserveDialogue("ready")
		return readyAdvance(0, false), nil
	}

	resp, err := e.completer.Complete(ctx, []completion.Message{
		completion.System(clarifySystemPrompt),
		completion.User(buildClarifyPrompt(ideaContent, transcript)),
	}, completion.Options{})
	if err != nil {
		e.metrics.ObserveDialogue("error")
		return nil, err
	}

	env, err := Parse[clarifyEnvelope](resp.Text)
	if err != nil {
		var failure *ParseFailure
		if errors.As(err, &failure) {
			e.logger.Info("clarify reply is not json", zap.String("reason", failure.Reason))
		}
		e.metrics.ObserveDialogue("parse_failure")
		return &Advance{
			Question:   strings.TrimSpace(resp.Text),
			TokensUsed: resp.TokensUsed,
			Called:     true,
		}, nil
	}

	if offered && env.ReadyForNote {
		e.metrics.ObserveDialogue("ready")
		out := readyAdvance(resp.TokensUsed, true)
		if q := strings.TrimSpace(env.Question); q != "" {
			out.Question = q
		}
		return out, nil
	}

	var raw []rawDimension
	if env.Progress != nil {
		raw = env.Progress.Dimensions
	}
	out := &Advance{
		Dimensions: normalizeDimensions(raw),
		Question:   strings.TrimSpace(env.Question),
		TokensUsed: resp.TokensUsed,
		Called:     true,
	}

	idx := firstIncomplete(out.Dimensions)
	if idx < 0 {
		out.TargetDimension = TargetConfirm
		if !isOffer(out.Question) {
			out.Question = offerQuestion
		}
		e.metrics.ObserveDialogue("offer")
		return out, nil
	}

	out.TargetDimension = string(canonicalDimensions[idx].id)
	if out.Question == "" || isOffer(out.Question) {
		out.Question = fallbackQuestion(idx, ideaContent)
	}
	e.metrics.ObserveDialogue("question")
	return out, nil
}

func readyAdvance(tokens int, called bool) *Advance {
	return &Advance{
		Dimensions:      AllDimensions(true),
		Question:        readyReply,
		TargetDimension: TargetGenerate,
		ReadyForNote:    true,
		TokensUsed:      tokens,
		Called:          called,
	}
}
