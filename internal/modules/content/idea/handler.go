package idea

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/modules/processing/ai"
	"github.com/ideaflow/server/internal/pkg/pagination"
	"github.com/ideaflow/server/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	ideas := rg.Group("/ideas", authMW)

	ideas.GET("", h.list)
	ideas.POST("", h.create)
	ideas.GET("/:id", h.get)
	ideas.PATCH("/:id", h.update)
	ideas.PUT("/:id", h.update)
	ideas.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	items, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), c.Query("status"), pagination.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Paged(c, "ideas", items, pag)
}

func (h *Handler) get(c *gin.Context) {
	idea, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, idea)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateIdeaDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "内容不能为空")
		return
	}
	idea, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), dto.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, idea)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateIdeaDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	idea, err := h.svc.Update(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, idea)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"success": true})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrEmptyPatch), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrEmptyTitle), errors.Is(err, ai.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
