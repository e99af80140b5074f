package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/testutil"
)

type stubAuthenticator struct {
	players map[string]*model.Player
	err     error
}

func (s *stubAuthenticator) Verify(ctx context.Context, token string) (*model.Player, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.players[token]; ok {
		return p, nil
	}
	return nil, model.ErrInvalidSession
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuthInjectsPlayer(t *testing.T) {
	stub := &stubAuthenticator{players: map[string]*model.Player{"tok": {ID: "p1"}}}
	var seen *model.Player
	var token string
	h := Auth(stub)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = MustGetPlayer(r.Context())
		token = GetToken(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := serve(h, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.PlayerID("p1"), seen.ID)
	assert.Equal(t, "tok", token)
}

func TestAuthRejectsMissingAndUnknownToken(t *testing.T) {
	stub := &stubAuthenticator{}
	h := Auth(stub)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)
}

func TestAuthPropagatesBan(t *testing.T) {
	stub := &stubAuthenticator{err: model.Banned("cheating", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))}
	h := Auth(stub)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	assert.Equal(t, http.StatusForbidden, serve(h, req).Code)
}

func TestAdminKey(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(AdminKeyHeader, "secret")
	assert.Equal(t, http.StatusOK, serve(AdminKey("secret")(ok), req).Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(AdminKeyHeader, "wrong")
	assert.Equal(t, http.StatusForbidden, serve(AdminKey("secret")(ok), req).Code)

	// Unconfigured key locks everyone out, including empty headers
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Equal(t, http.StatusForbidden, serve(AdminKey("")(ok), req).Code)
}

func TestRecoveryWritesJSON(t *testing.T) {
	logger, buf := testutil.CaptureLogger()
	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestRecoveryReraisesAbort(t *testing.T) {
	h := Recovery(testutil.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
