package user

import (
	"errors"
	"time"

	"github.com/ideaflow/server/internal/models"
)

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterDTO struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name"`
}

type userResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Name          string     `json:"name"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
	Created       time.Time  `json:"created"`
}

func toResponse(u *models.UserModel) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:            u.ID,
		Username:      u.Username,
		Name:          u.Name,
		LastLoginTime: u.LastLoginTime,
		LastLoginIP:   u.LastLoginIP,
		Created:       u.CreatedAt,
	}
}

type loginResponse struct {
	Token string        `json:"token"`
	User  *userResponse `json:"user,omitempty"`
}

var (
	ErrUserNotFound  = errors.New("用户名不正确")
	ErrWrongPassword = errors.New("密码不正确")
	ErrUsernameTaken = errors.New("用户名已被注册")
)
