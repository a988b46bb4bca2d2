package note

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/modules/content/idea"
	"github.com/ideaflow/server/internal/pkg/pagination"
	"github.com/ideaflow/server/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the note routes. create may be wrapped with extra
// middleware such as idempotence.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, createMW ...gin.HandlerFunc) {
	notes := rg.Group("/notes", authMW)

	notes.GET("", h.list)
	notes.POST("", append(createMW, h.create)...)
	notes.GET("/:id", h.get)
	notes.PUT("/:id", h.update)
	notes.PATCH("/:id", h.update)
	notes.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	items, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), c.Query("status"), pagination.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Paged(c, "notes", items, pag)
}

func (h *Handler) get(c *gin.Context) {
	n, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, n)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateNoteDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	n, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, n)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateNoteDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	n, err := h.svc.Update(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, n)
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
	case errors.Is(err, ErrNotFound), errors.Is(err, idea.ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrEmptyTitle), errors.Is(err, ErrEmptyPatch), errors.Is(err, ErrInvalidFilter):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
