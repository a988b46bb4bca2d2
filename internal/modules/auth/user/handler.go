package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /auth. loginMW guards the password endpoints, e.g.
// with a per-IP rate limit.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, loginMW ...gin.HandlerFunc) {
	g := rg.Group("/auth")
	g.POST("/register", append(loginMW, h.register)...)
	g.POST("/login", append(loginMW, h.login)...)

	a := g.Group("", authMW)
	a.POST("/logout", h.logout)
	a.GET("/session", h.session)
	a.GET("/sessions", h.sessions)
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "用户名至少3个字符，密码至少6个字符")
		return
	}
	u, err := h.svc.Register(c.Request.Context(), &dto)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			response.Conflict(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, toResponse(u))
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "缺少用户名或密码")
		return
	}
	token, u, err := h.svc.Login(c.Request.Context(), dto.Username, dto.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrWrongPassword) {
			response.Fail(c, http.StatusUnauthorized, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, loginResponse{Token: token, User: toResponse(u)})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.CurrentUserID(c), middleware.CurrentSessionID(c)); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"success": true})
}

func (h *Handler) session(c *gin.Context) {
	u, err := h.svc.GetByID(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.Unauthorized(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"user": toResponse(u)})
}

func (h *Handler) sessions(c *gin.Context) {
	current := middleware.CurrentSessionID(c)
	list, err := h.svc.Sessions(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	data := make([]gin.H, 0, len(list))
	for _, s := range list {
		data = append(data, gin.H{
			"id":      s.ID,
			"ua":      s.UA,
			"ip":      s.IP,
			"date":    s.UpdatedAt,
			"current": s.ID == current,
		})
	}
	response.OK(c, gin.H{"data": data})
}
