package organize

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/content/conversation"
	"github.com/ideaflow/server/internal/modules/content/idea"
	"github.com/ideaflow/server/internal/modules/content/note"
	"github.com/ideaflow/server/internal/modules/processing/ai"
	"github.com/ideaflow/server/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the organize routes; writeMW wraps the routes that
// append turns or notes. Start reports the current state on repeat calls
// and is never wrapped.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, writeMW ...gin.HandlerFunc) {
	g := rg.Group("/organize/:ideaId", authMW)
	g.POST("/start", h.start)
	g.POST("/turns", append(append([]gin.HandlerFunc{}, writeMW...), h.turn)...)
	g.POST("/note", append(append([]gin.HandlerFunc{}, writeMW...), h.save)...)
}

type turnDTO struct {
	Content  string              `json:"content"`
	Metadata models.TurnMetadata `json:"metadata"`
}

func (h *Handler) start(c *gin.Context) {
	session, err := h.svc.Start(c.Request.Context(), middleware.CurrentUserID(c), c.Param("ideaId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, session)
}

func (h *Handler) turn(c *gin.Context) {
	var dto turnDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "内容不能为空")
		return
	}
	res, err := h.svc.Turn(c.Request.Context(), middleware.CurrentUserID(c), c.Param("ideaId"), dto.Content, dto.Metadata)
	if err != nil {
		writeError(c, err)
		return
	}

	body := ai.ClarifyResponse(res.Advance)
	body["state"] = res.Advance.State()
	body["user_turn"] = res.UserTurn
	body["assistant_turn"] = res.AssistantTurn
	body["note"] = res.Note
	response.OK(c, body)
}

func (h *Handler) save(c *gin.Context) {
	n, err := h.svc.Save(c.Request.Context(), middleware.CurrentUserID(c), c.Param("ideaId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, gin.H{"note": n})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, idea.ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrCompleted), errors.Is(err, ErrNotStarted):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNotReady), errors.Is(err, conversation.ErrMissingFields),
		errors.Is(err, note.ErrEmptyTitle):
		response.BadRequest(c, err.Error())
	default:
		ai.WriteError(c, err)
	}
}
