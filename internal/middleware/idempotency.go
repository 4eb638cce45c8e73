package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader   = "Idempotency-Key"
	idempotencyTTL      = 24 * time.Hour
	idempotencyInFlight = 30 * time.Second
)

// storedResponse is the replayed payload for a repeated request.
type storedResponse struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for requests that repeat
// an Idempotency-Key. Acceptance and wallet mutations arrive over flaky
// mobile links and get retried; the first outcome must win. A key still being
// processed answers 409 so a concurrent retry cannot run the handler twice.
//
// Keys are scoped per method and path; reusing a key on a different route is
// a different request.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storeKey := "dispatch:idem:" + c.Request.Method + ":" + c.FullPath() + ":" + key

		data, err := redisClient.Get(ctx, storeKey).Bytes()
		if err == nil {
			var stored storedResponse
			if json.Unmarshal(data, &stored) == nil && stored.StatusCode != 0 {
				c.Data(stored.StatusCode, stored.ContentType, stored.Body)
				c.Abort()
				return
			}
			// An empty record is the in-flight marker.
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is still processing"})
			return
		}
		if err != redis.Nil {
			// Redis down; serve the request without replay protection.
			c.Next()
			return
		}

		// Claim the key before running the handler so a concurrent retry
		// sees the in-flight marker rather than racing us.
		claimed, err := redisClient.SetNX(ctx, storeKey, "{}", idempotencyInFlight).Result()
		if err == nil && !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is still processing"})
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 500 {
			stored := storedResponse{
				StatusCode:  status,
				ContentType: c.Writer.Header().Get("Content-Type"),
				Body:        w.body.Bytes(),
			}
			if data, err := json.Marshal(&stored); err == nil {
				_ = redisClient.Set(ctx, storeKey, data, idempotencyTTL).Err()
			}
			return
		}
		// Server errors are retryable; release the claim.
		_ = redisClient.Del(ctx, storeKey).Err()
	}
}
