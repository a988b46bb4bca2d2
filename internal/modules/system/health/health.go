// Package health serves liveness probes and the native log files.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/pkg/cron"
	pkgredis "github.com/ideaflow/server/internal/pkg/redis"
	"github.com/ideaflow/server/internal/pkg/response"
	"gorm.io/gorm"
)

const pingTimeout = 2 * time.Second

type logItem struct {
	Size     string `json:"size"`
	Filename string `json:"filename"`
	Index    int    `json:"index"`
	Created  int64  `json:"created"`
}

// Deps are the probes and admin views behind /health. Redis and Scheduler
// are optional.
type Deps struct {
	DB        *gorm.DB
	Redis     *pkgredis.Client
	Scheduler *cron.Scheduler
	LogDir    string
}

// RegisterRoutes mounts /ping, /health and the authenticated cron and log
// views.
func RegisterRoutes(rg *gin.RouterGroup, deps Deps, authMW gin.HandlerFunc) {
	db, rc, logDir := deps.DB, deps.Redis, deps.LogDir

	rg.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	rg.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()

		sqlDB, err := db.DB()
		dbOK := err == nil && sqlDB.PingContext(ctx) == nil
		body := gin.H{"database": dbOK}
		healthy := dbOK
		if rc != nil {
			redisOK := rc.Ping(ctx) == nil
			body["redis"] = redisOK
			healthy = healthy && redisOK
		}

		code := http.StatusOK
		body["status"] = "ok"
		if !healthy {
			body["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, body)
	})

	if deps.Scheduler != nil {
		jobs := rg.Group("/health/cron", authMW)
		jobs.GET("", func(c *gin.Context) {
			response.OK(c, deps.Scheduler.List())
		})
		jobs.POST("/run/:name", func(c *gin.Context) {
			if err := deps.Scheduler.Run(c.Request.Context(), c.Param("name")); err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			response.OK(c, gin.H{"success": true})
		})
	}

	logs := rg.Group("/health/log", authMW)
	logs.GET("/list", func(c *gin.Context) {
		entries, err := os.ReadDir(logDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				response.OK(c, []logItem{})
				return
			}
			response.InternalError(c, err)
			return
		}

		items := make([]logItem, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			items = append(items, logItem{
				Size:     formatByteSize(info.Size()),
				Filename: entry.Name(),
				Created:  info.ModTime().UnixMilli(),
			})
		}
		sort.Slice(items, func(i, j int) bool {
			return items[i].Created > items[j].Created
		})
		for i := range items {
			items[i].Index = i
		}
		response.OK(c, items)
	})

	logs.GET("", func(c *gin.Context) {
		filename := filepath.Base(strings.TrimSpace(c.Query("filename")))
		if filename == "" || filename == "." || filename == string(filepath.Separator) {
			response.BadRequest(c, "filename must be string")
			return
		}
		data, err := os.ReadFile(filepath.Join(logDir, filename))
		if err != nil {
			response.NotFoundMsg(c, "log file not exists")
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
	})
}

func formatByteSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
