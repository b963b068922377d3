package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/core/apperror"
	appctx "fieldops/internal/core/context"
	"fieldops/internal/core/security"
	"fieldops/internal/infrastructure/http/v1/middleware"
	"fieldops/internal/infrastructure/storage/postgres"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Trace(), middleware.ErrorHandler())
	r.Use(mw...)
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestErrorHandler_RendersAppError(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(apperror.NewInvalidTransition("flat", "completed", "assigned"))
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INVALID_TRANSITION"`)
	assert.Contains(t, rec.Body.String(), `"from":"completed"`)
}

func TestErrorHandler_HidesInternalCauses(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(apperror.NewStoreFailure("update status", errors.New("pq: password=secret")))
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.GreaterOrEqual(t, rec.Code, http.StatusInternalServerError)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestErrorHandler_PlainErrorIsInternal(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRecovery_RendersPanic(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(*gin.Context) { panic("nil map") })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)
}

func TestTrace_EchoesRequestID(t *testing.T) {
	r := newEngine()
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = appctx.GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-42")
	rec := serve(r, req)

	assert.Equal(t, "req-42", rec.Header().Get(middleware.HeaderRequestID))
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderTraceID))
	assert.Equal(t, "req-42", seen)
}

type staticValidator struct{}

func (staticValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &appctx.UserContext{UserID: "u-1", Roles: []string{security.RoleManager}}, nil
}

func TestAuth_SetsActor(t *testing.T) {
	r := newEngine(middleware.Auth(staticValidator{}), middleware.UserContext())
	var actor string
	var manager bool
	r.GET("/x", func(c *gin.Context) {
		actor = security.Actor(c.Request.Context())
		manager = appctx.HasRole(c.Request.Context(), security.RoleManager)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := serve(r, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u-1", actor)
	assert.True(t, manager)
}

func TestAuth_RejectsMalformedHeader(t *testing.T) {
	r := newEngine(middleware.Auth(staticValidator{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, header := range []string{"", "good", "Basic good", "Bearer nope"} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := serve(r, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

type recordingStore struct {
	acquired  []string
	replay    *postgres.IdempotencyReplay
	err       error
	completed map[string]int
	failed    map[string]int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{completed: map[string]int{}, failed: map[string]int{}}
}

func (s *recordingStore) AcquireKey(_ context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error) {
	s.acquired = append(s.acquired, key+"|"+userID+"|"+operation+"|"+requestHash)
	return s.replay, s.err
}

func (s *recordingStore) CompleteKey(_ context.Context, key string, statusCode int, _ string, _ any) error {
	s.completed[key] = statusCode
	return nil
}

func (s *recordingStore) FailKey(_ context.Context, key string, statusCode int, _ string, _ any) error {
	s.failed[key] = statusCode
	return nil
}

func TestIdempotency_SkipsReadsAndMissingKey(t *testing.T) {
	store := newRecordingStore()
	r := newEngine(middleware.Idempotency(store))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(middleware.HeaderIdempotencyKey, "k")
	serve(r, req)
	serve(r, httptest.NewRequest(http.MethodPost, "/x", nil))

	assert.Empty(t, store.acquired)
}

func TestIdempotency_CompletesAndFails(t *testing.T) {
	store := newRecordingStore()
	r := newEngine(middleware.Idempotency(store))
	r.POST("/ok", func(c *gin.Context) {
		body, _ := c.GetRawData()
		middleware.CompleteIdempotency(c, http.StatusOK, string(body))
		c.String(http.StatusOK, string(body))
	})
	r.POST("/fail", func(c *gin.Context) {
		_ = c.Error(apperror.NewInvalidStatus("finished"))
	})

	req := httptest.NewRequest(http.MethodPost, "/ok", strings.NewReader(`{"a":1}`))
	req.Header.Set(middleware.HeaderIdempotencyKey, "k1")
	rec := serve(r, req)
	assert.Equal(t, `{"a":1}`, rec.Body.String(), "body is restored for the handler")

	req = httptest.NewRequest(http.MethodPost, "/fail", strings.NewReader(`{}`))
	req.Header.Set(middleware.HeaderIdempotencyKey, "k2")
	serve(r, req)

	require.Len(t, store.acquired, 2)
	assert.True(t, strings.HasPrefix(store.acquired[0], "k1||POST /ok|"))
	assert.Equal(t, http.StatusOK, store.completed["k1"])
	assert.Equal(t, http.StatusBadRequest, store.failed["k2"])
}

func TestIdempotency_Replays(t *testing.T) {
	store := newRecordingStore()
	store.replay = &postgres.IdempotencyReplay{StatusCode: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"status":"success"}`)}
	r := newEngine(middleware.Idempotency(store))
	called := false
	r.PATCH("/x", func(c *gin.Context) { called = true })

	req := httptest.NewRequest(http.MethodPatch, "/x", strings.NewReader(`{}`))
	req.Header.Set(middleware.HeaderIdempotencyKey, "k")
	rec := serve(r, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
}

func TestIdempotency_ConflictRendered(t *testing.T) {
	store := newRecordingStore()
	store.err = apperror.NewIdempotencyConflict("k")
	r := newEngine(middleware.Idempotency(store))
	r.PATCH("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPatch, "/x", strings.NewReader(`{}`))
	req.Header.Set(middleware.HeaderIdempotencyKey, "k")
	rec := serve(r, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"IDEMPOTENCY_CONFLICT"`)
}

func TestIdempotency_BodyTooLarge(t *testing.T) {
	store := newRecordingStore()
	r := newEngine(middleware.Idempotency(store))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("a", 1<<20+1)))
	req.Header.Set(middleware.HeaderIdempotencyKey, "k")
	rec := serve(r, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, store.acquired)
}
