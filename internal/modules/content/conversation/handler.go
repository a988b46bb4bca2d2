package conversation

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/modules/content/idea"
	"github.com/ideaflow/server/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/conversations", authMW)
	g.GET("", h.list)
	g.POST("", h.create)
}

type appendDTO struct {
	IdeaID   string              `json:"idea_id"`
	Role     models.TurnRole     `json:"role"`
	Content  string              `json:"content"`
	Metadata models.TurnMetadata `json:"metadata"`
}

func (h *Handler) list(c *gin.Context) {
	ideaID := c.Query("idea_id")
	if ideaID == "" {
		response.BadRequest(c, "缺少 idea_id 参数")
		return
	}
	turns, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), ideaID)
	if err != nil {
		writeError(c, err)
		return
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	response.OK(c, gin.H{"conversations": turns})
}

func (h *Handler) create(c *gin.Context) {
	var dto appendDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, ErrMissingFields.Error())
		return
	}
	turn, err := h.svc.Append(c.Request.Context(), middleware.CurrentUserID(c), dto.IdeaID, dto.Role, dto.Content, dto.Metadata)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, turn)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, idea.ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrInvalidRole):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
