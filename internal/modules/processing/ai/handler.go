package ai

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/modules/processing/completion"
	"github.com/ideaflow/server/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/ai", authMW)
	g.POST("/reflect", h.reflect)
	g.POST("/clarify", h.clarify)
	g.POST("/synthesize", h.synthesize)
}

type clarifyDTO struct {
	Conversations json.RawMessage `json:"conversations"`
	IdeaContent   string          `json:"ideaContent"`
}

type synthesizeDTO struct {
	Conversations json.RawMessage `json:"conversations"`
}

type readiness struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

type progress struct {
	Dimensions []Dimension `json:"dimensions"`
}

// POST /ai/reflect
func (h *Handler) reflect(c *gin.Context) {
	uid := middleware.CurrentUserID(c)
	if err := h.svc.CheckQuota(c.Request.Context(), uid); err != nil {
		WriteError(c, err)
		return
	}

	var dto reflectDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, msgEmptyContent)
		return
	}
	out, err := h.svc.Reflect(c.Request.Context(), uid, dto.Content)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.OK(c, gin.H{"reflection": out.Text, "tokensUsed": out.TokensUsed})
}

// POST /ai/clarify
func (h *Handler) clarify(c *gin.Context) {
	uid := middleware.CurrentUserID(c)
	if err := h.svc.CheckQuota(c.Request.Context(), uid); err != nil {
		WriteError(c, err)
		return
	}

	var dto clarifyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, msgBadTranscript)
		return
	}
	transcript, err := decodeTranscript(dto.Conversations)
	if err != nil {
		WriteError(c, err)
		return
	}
	out, err := h.svc.Clarify(c.Request.Context(), uid, dto.IdeaContent, transcript)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.OK(c, ClarifyResponse(out))
}

// POST /ai/synthesize
func (h *Handler) synthesize(c *gin.Context) {
	uid := middleware.CurrentUserID(c)
	if err := h.svc.CheckQuota(c.Request.Context(), uid); err != nil {
		WriteError(c, err)
		return
	}

	var dto synthesizeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, msgBadTranscript)
		return
	}
	transcript, err := decodeTranscript(dto.Conversations)
	if err != nil {
		WriteError(c, err)
		return
	}
	out, err := h.svc.Synthesize(c.Request.Context(), uid, transcript)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.OK(c, gin.H{"note": out.Note, "tokensUsed": out.TokensUsed})
}

// ClarifyResponse renders one dialogue turn in the public response shape.
func ClarifyResponse(a *Advance) gin.H {
	var prog *progress
	if a.Dimensions != nil {
		prog = &progress{Dimensions: a.Dimensions}
	}
	return gin.H{
		"question":         a.Question,
		"progress":         prog,
		"target_dimension": a.TargetDimension,
		"readiness":        readiness{Ready: a.ReadyForNote, Reason: a.TargetDimension},
		"tokensUsed":       a.TokensUsed,
	}
}

// decodeTranscript requires a JSON array of turns.
func decodeTranscript(raw json.RawMessage) ([]Turn, error) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, inputError(msgBadTranscript)
	}
	var turns []Turn
	if err := json.Unmarshal([]byte(trimmed), &turns); err != nil {
		return nil, inputError(msgBadTranscript)
	}
	return turns, nil
}

// WriteError maps AI pipeline errors onto the response envelope.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrQuotaExceeded):
		response.TooManyRequests(c, ErrQuotaExceeded.Error())
	case errors.Is(err, ErrSynthesisFailure):
		response.InternalErrorMsg(c, ErrSynthesisFailure.Error())
	case errors.Is(err, completion.ErrUpstreamUnavailable):
		response.InternalErrorMsg(c, completion.ErrUpstreamUnavailable.Error())
	default:
		response.InternalError(c, err)
	}
}
