package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/security"
	"fieldops/internal/infrastructure/storage/postgres"
	"fieldops/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

const maxIdempotencyBodyBytes = 1 << 20

const (
	keyIdempotencyKey   = "idempotency_key"
	keyIdempotencyStore = "idempotency_store"
)

// IdempotencyStore persists idempotency keys. Implemented by postgres.IdempotencyStore.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

// Idempotency replays stored responses for repeated X-Idempotency-Key requests
// on mutating methods. Must run after UserContext.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1))
		if err != nil {
			_ = c.Error(apperror.NewValidation("unreadable request body"))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)

		operation := c.Request.Method + " " + c.Request.URL.Path
		userID := security.GetUserID(c.Request.Context())

		replay, err := store.AcquireKey(c.Request.Context(), key, userID, operation, hex.EncodeToString(hash[:]))
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}
		if replay != nil {
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(keyIdempotencyKey, key)
		c.Set(keyIdempotencyStore, store)
		c.Next()
	}
}

// CompleteIdempotency stores a successful response for replay. No-op without a key.
func CompleteIdempotency(c *gin.Context, statusCode int, response any) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.CompleteKey(c.Request.Context(), key, statusCode, "application/json", response); err != nil {
		logger.Warn(c.Request.Context(), "idempotency complete failed", "key", key, "error", err)
	}
}

// FailIdempotency stores an error response for replay. No-op without a key.
func FailIdempotency(c *gin.Context, statusCode int, response any) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.FailKey(c.Request.Context(), key, statusCode, "application/json", response); err != nil {
		logger.Warn(c.Request.Context(), "idempotency fail failed", "key", key, "error", err)
	}
}

func idempotencyFrom(c *gin.Context) (string, IdempotencyStore, bool) {
	key := c.GetString(keyIdempotencyKey)
	if key == "" {
		return "", nil, false
	}
	v, exists := c.Get(keyIdempotencyStore)
	if !exists {
		return "", nil, false
	}
	store, ok := v.(IdempotencyStore)
	return key, store, ok
}
