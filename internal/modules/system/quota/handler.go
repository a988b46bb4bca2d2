package quota

import (
	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/pkg/response"
)

type Handler struct{ gov *Governor }

func NewHandler(gov *Governor) *Handler { return &Handler{gov: gov} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/quota", authMW, h.get)
}

type quotaResponse struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
	Usage
}

func (h *Handler) get(c *gin.Context) {
	usage, err := h.gov.Usage(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	remaining := h.gov.Limit() - usage.RequestsToday
	if remaining < 0 {
		remaining = 0
	}
	response.OK(c, quotaResponse{Limit: h.gov.Limit(), Remaining: remaining, Usage: usage})
}
