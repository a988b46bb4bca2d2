package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotenceHeader = "x-idempotence"
	idempotenceTTL    = 60 * time.Second
)

// Idempotence rejects a repeated non-GET request while the first copy is in
// flight or within a minute of its success. The key is the x-idempotence
// header, or a hash of user, method, URL and body. Failed requests release
// the key so the client can retry.
func Idempotence(rdb *redis.Client) gin.HandlerFunc {
	return idempotence(rdb, resolveIdempotenceKey)
}

// HeaderIdempotence only deduplicates requests that carry x-idempotence.
// Use it where an identical body is a legitimate new request, such as the
// same short reply to two different questions.
func HeaderIdempotence(rdb *redis.Client) gin.HandlerFunc {
	return idempotence(rdb, func(c *gin.Context) (string, error) {
		hdr := c.GetHeader(idempotenceHeader)
		if hdr == "" {
			return "", nil
		}
		return CurrentUserID(c) + ":" + hdr, nil
	})
}

func idempotence(rdb *redis.Client, resolve func(*gin.Context) (string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		key, err := resolve(c)
		if err != nil || key == "" {
			c.Next()
			return
		}

		redisKey := fmt.Sprintf("ideaflow:idempotence:%s", key)
		ctx := c.Request.Context()

		val, err := rdb.Get(ctx, redisKey).Result()
		if err == nil {
			msg := "相同请求成功后在 60 秒内只能发送一次"
			if val == "0" {
				msg = "相同请求正在处理中..."
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"ok":      0,
				"code":    http.StatusConflict,
				"message": msg,
			})
			return
		}

		if !errors.Is(err, redis.Nil) {
			c.Next()
			return
		}

		if setErr := rdb.Set(ctx, redisKey, "0", idempotenceTTL).Err(); setErr != nil {
			c.Next()
			return
		}

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			rdb.Set(ctx, redisKey, "1", redis.KeepTTL)
		} else {
			rdb.Del(ctx, redisKey)
		}
	}
}

func resolveIdempotenceKey(c *gin.Context) (string, error) {
	uid := CurrentUserID(c)
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return uid + ":" + hdr, nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	if len(body) == 0 && uid == "" {
		return "", nil
	}

	raw := uid + "|" + c.Request.Method + "|" + c.Request.URL.String() + "|" + string(body)
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:]), nil
}
