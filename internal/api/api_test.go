package api_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/apierr"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/middleware"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/request"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/response"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/factory"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/notify"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/rating"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/stamina"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/testutil"
)

const adminKey = "test-admin-key"

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	require.NoError(t, app.LoadTestMap())

	router := api.NewRouter(api.RouterConfig{
		Logger:         testutil.NopLogger(),
		AdminKey:       adminKey,
		AuthService:    app.AuthService,
		StaminaService: app.StaminaService,
		ScoringService: app.ScoringService,
		RatingService:  app.RatingService,
		WorldService:   app.WorldService,
		Maps:           app.Catalog,
		Notifier:       app.Notifier,
	})

	return &testServer{handler: router, app: app}
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
}

func (ts *testServer) do(c call) *httptest.ResponseRecorder {
	var reqBody bytes.Buffer
	if c.body != nil {
		b, _ := json.Marshal(c.body)
		reqBody.Write(b)
	}

	req := httptest.NewRequest(c.method, c.path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	return ts.do(call{method: method, path: path, body: body, token: token})
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func requireErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status, errorCode int) {
	t.Helper()
	require.Equal(t, status, rr.Code, rr.Body.String())
	body := decodeBody[apierr.ErrorResponse](t, rr)
	assert.Equal(t, errorCode, body.Error.ErrorCode)
}

func register(t *testing.T, ts *testServer, name, device string) response.AuthResponse {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/players/register", request.RegisterRequest{
		Name:     name,
		Password: "hikari",
		DeviceID: device,
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[response.AuthResponse](t, rr)
}

func submit(t *testing.T, ts *testServer, token string, req request.SubmitScoreRequest) response.Submit {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/scores", req, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decodeBody[response.Submit](t, rr)
}

var grievousFuture = request.SubmitScoreRequest{SongID: "grievouslady", Difficulty: 2, Score: 9_900_000}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	health := decodeBody[response.Health](t, rr)
	assert.Equal(t, "ok", health.Status)
	assert.Positive(t, health.Maps)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	auth := register(t, ts, "tairitsu", "dev-a")
	assert.NotEmpty(t, auth.SessionToken)
	assert.NotEmpty(t, auth.PlayerID)
	require.NotNil(t, auth.ExpiresAt)

	rr := ts.do(call{
		method:  http.MethodPost,
		path:    "/api/v1/players/login",
		body:    request.LoginRequest{Name: "tairitsu", Password: "hikari"},
		headers: map[string]string{request.DeviceHeader: "dev-a"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	login := decodeBody[response.AuthResponse](t, rr)
	assert.Equal(t, auth.PlayerID, login.PlayerID)
}

func TestRegisterDuplicateName(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "tairitsu", "dev-a")

	rr := ts.request(http.MethodPost, "/api/v1/players/register",
		request.RegisterRequest{Name: "tairitsu", Password: "x", DeviceID: "dev-b"}, "")
	requireErrorCode(t, rr, http.StatusConflict, 101)
}

func TestRegisterMissingFields(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players/register", request.RegisterRequest{Name: "a"}, "")
	requireErrorCode(t, rr, http.StatusBadRequest, 1)
}

func TestLoginFailures(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "tairitsu", "dev-a")

	rr := ts.request(http.MethodPost, "/api/v1/players/login",
		request.LoginRequest{Name: "tairitsu", Password: "wrong", DeviceID: "dev-a"}, "")
	requireErrorCode(t, rr, http.StatusUnauthorized, 104)

	rr = ts.request(http.MethodPost, "/api/v1/players/login",
		request.LoginRequest{Name: "tairitsu", Password: "hikari", DeviceID: "dev-b"}, "")
	requireErrorCode(t, rr, http.StatusTooManyRequests, 105)
}

func TestGetMe(t *testing.T) {
	ts := newTestServer(t)
	auth := register(t, ts, "tairitsu", "dev-a")

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)

	me := decodeBody[response.Player](t, rr)
	assert.Equal(t, "tairitsu", me.Name)
	assert.Equal(t, 12, me.Stamina.Stamina)
	assert.True(t, me.Stamina.BonusReady)
	assert.Empty(t, me.Inventory)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/players/me", "/api/v1/stamina", "/api/v1/rating", "/api/v1/world/maps"} {
		rr := ts.request(http.MethodGet, path, nil, "")
		requireErrorCode(t, rr, http.StatusUnauthorized, 108)
	}

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, "bogus")
	requireErrorCode(t, rr, http.StatusUnauthorized, 108)
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	auth := register(t, ts, "tairitsu", "dev-a")

	rr := ts.request(http.MethodPost, "/api/v1/players/logout", nil, auth.SessionToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, auth.SessionToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSubmitPublishesRating(t *testing.T) {
	ts := newTestServer(t)
	auth := register(t, ts, "tairitsu", "dev-a")

	req := grievousFuture
	req.SubmissionID = "sub-1"
	result := submit(t, ts, auth.SessionToken, req)
	assert.InDelta(t, 12.8, result.Rating, 1e-9)
	assert.True(t, result.Improved)
	assert.InDelta(t, 0.64, result.Overall, 1e-9)

	replay := submit(t, ts, auth.SessionToken, req)
	assert.True(t, replay.Replayed)

	rr := ts.request(http.MethodGet, "/api/v1/rating", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	breakdown := decodeBody[rating.Breakdown](t, rr)
	assert.Equal(t, 1, breakdown.BestCount)
	assert.Equal(t, 1, breakdown.RecentCount)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, auth.SessionToken)
	me := decodeBody[response.Player](t, rr)
	assert.InDelta(t, 0.64, me.Rating, 1e-9)
}

func TestBestAndRecentScores(t *testing.T) {
	ts := newTestServer(t)
	auth := register(t, ts, "tairitsu", "dev-a")

	submit(t, ts, auth.SessionToken, request.SubmitScoreRequest{SongID: "grievouslady", Difficulty: 2, Score: 9_500_000})
	submit(t, ts, auth.SessionToken, request.SubmitScoreRequest{SongID: "grievouslady", Difficulty: 2, Score: 9_000_000})
	submit(t, ts, auth.SessionToken, request.SubmitScoreRequest{SongID: "sayonarahatsukoi", Difficulty: 2, Score: 10_000_000})

	rr := ts.request(http.MethodGet, "/api/v1/scores/best", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	best := decodeBody[[]response.BestScore](t, rr)
	require.Len(t, best, 2)
	assert.Equal(t, "grievouslady", best[0].SongID)
	assert.Equal(t, 9_500_000, best[0].Score)

	rr = ts.request(http.MethodGet, "/api/v1/scores/recent?limit=2", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	recent := decodeBody[[]response.RecentPlay](t, rr)
	require.Len(t, recent, 2)
	assert.Equal(t, "sayonarahatsukoi", recent[0].SongID)

	rr = ts.request(http.MethodGet, "/api/v1/scores/recent?limit=-1", nil, auth.SessionToken)
	requireErrorCode(t, rr, http.StatusBadRequest, 1)
}

func TestSubmitUnknownChart(t *testing.T) {
	ts := newTestServer(t)
	auth := register(t, ts, "tairitsu", "dev-a")

	rr := ts.request(http.MethodPost, "/api/v1/scores",
		request.SubmitScoreRequest{SongID: "nope", Difficulty: 2, Score: 1}, auth.SessionToken)
	requireErrorCode(t, rr, http.StatusNotFound, 402)
}

func TestStaminaBonus(t *testing.T) {
	ts := newTestServer(t)
	auth := register(t, ts, "tairitsu", "dev-a")

	rr := ts.request(http.MethodPost, "/api/v1/stamina/bonus", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	status := decodeBody[stamina.Status](t, rr)
	assert.False(t, status.BonusReady)

	rr = ts.request(http.MethodPost, "/api/v1/stamina/bonus", nil, auth.SessionToken)
	requireErrorCode(t, rr, http.StatusConflict, 202)
}

func TestWorldClimb(t *testing.T) {
	ts := newTestServer(t)
	auth := register(t, ts, "tairitsu", "dev-a")
	mapPath := "/api/v1/world/maps/" + factory.TestMapID

	rr := ts.request(http.MethodGet, "/api/v1/world/maps", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), factory.TestMapID)

	rr = ts.request(http.MethodPost, mapPath+"/enter", nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.request(http.MethodPost, mapPath+"/step", request.StepRequest{Target: 1}, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	step := decodeBody[response.Step](t, rr)
	assert.Equal(t, 1, step.Progress.Position)
	assert.Equal(t, 1, step.StaminaSpent)

	rr = ts.request(http.MethodPost, mapPath+"/step", request.StepRequest{Target: 3}, auth.SessionToken)
	requireErrorCode(t, rr, http.StatusBadRequest, 303)

	// The last step requires a grievouslady FTR play
	rr = ts.request(http.MethodPost, mapPath+"/climb", request.StepRequest{Target: 3}, auth.SessionToken)
	requireErrorCode(t, rr, http.StatusConflict, 301)

	submit(t, ts, auth.SessionToken, grievousFuture)
	rr = ts.request(http.MethodPost, mapPath+"/climb", request.StepRequest{Target: 3}, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	step = decodeBody[response.Step](t, rr)
	assert.True(t, step.Progress.Cleared)
	assert.Len(t, step.Rewards, 2)

	rr = ts.request(http.MethodGet, mapPath, nil, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[response.MapProgress](t, rr).Cleared)
}

func TestAdminRequiresKey(t *testing.T) {
	ts := newTestServer(t)
	auth := register(t, ts, "tairitsu", "dev-a")

	rr := ts.request(http.MethodPost, "/api/v1/admin/players/"+auth.PlayerID+"/ban",
		request.BanRequest{Reason: "cheating"}, auth.SessionToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAdminBanBlocksExistingSession(t *testing.T) {
	ts := newTestServer(t)
	auth := register(t, ts, "tairitsu", "dev-a")
	admin := map[string]string{middleware.AdminKeyHeader: adminKey}

	rr := ts.do(call{
		method:  http.MethodPost,
		path:    "/api/v1/admin/players/" + auth.PlayerID + "/ban",
		body:    request.BanRequest{Reason: "cheating"},
		headers: admin,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	ban := decodeBody[response.Ban](t, rr)
	assert.Equal(t, 1, ban.Offenses)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, auth.SessionToken)
	requireErrorCode(t, rr, http.StatusForbidden, 106)
	body := decodeBody[apierr.ErrorResponse](t, rr)
	require.NotNil(t, body.Error.Ban)
	assert.Equal(t, "cheating", body.Error.Ban.Reason)

	rr = ts.do(call{method: http.MethodPost, path: "/api/v1/admin/players/" + auth.PlayerID + "/unban", headers: admin})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, auth.SessionToken)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminMapLock(t *testing.T) {
	ts := newTestServer(t)
	auth := register(t, ts, "tairitsu", "dev-a")
	admin := map[string]string{middleware.AdminKeyHeader: adminKey}
	adminPath := "/api/v1/admin/players/" + auth.PlayerID + "/maps/" + factory.TestMapID

	rr := ts.do(call{method: http.MethodPost, path: adminPath + "/lock", headers: admin})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decodeBody[response.MapProgress](t, rr).Locked)

	rr = ts.request(http.MethodPost, "/api/v1/world/maps/"+factory.TestMapID+"/step",
		request.StepRequest{Target: 1}, auth.SessionToken)
	requireErrorCode(t, rr, http.StatusLocked, 302)

	rr = ts.do(call{method: http.MethodPost, path: adminPath + "/unlock", headers: admin})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/world/maps/"+factory.TestMapID+"/step",
		request.StepRequest{Target: 1}, auth.SessionToken)
	assert.Equal(t, http.StatusOK, rr.Code)
}

// openStream connects to the notification stream over a real listener and
// waits until the hub has registered it
func openStream(t *testing.T, ts *testServer, baseURL string, auth response.AuthResponse) *bufio.Reader {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.SessionToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	event, _ := nextEvent(t, reader)
	require.Equal(t, notify.EventConnected, event)

	require.Eventually(t, func() bool {
		return ts.app.Notifier.StreamCount(model.PlayerID(auth.PlayerID)) == 1
	}, time.Second, 5*time.Millisecond)
	return reader
}

func nextEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")
		switch {
		case line == "" && event != "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data += strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventsStreamProgression(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	defer func() { _ = ts.app.Notifier.Close() }()

	auth := register(t, ts, "tairitsu", "dev-a")
	reader := openStream(t, ts, srv.URL, auth)

	req := grievousFuture
	req.SubmissionID = "sub-1"
	submit(t, ts, auth.SessionToken, req)

	event, data := nextEvent(t, reader)
	assert.Equal(t, notify.EventScore, event)
	var scored response.Submit
	require.NoError(t, json.Unmarshal([]byte(data), &scored))
	assert.Equal(t, "sub-1", scored.SubmissionID)
	assert.InDelta(t, 0.64, scored.Overall, 1e-9)

	// A replay changes nothing and is not announced
	submit(t, ts, auth.SessionToken, req)

	rr := ts.request(http.MethodPost, "/api/v1/world/maps/"+factory.TestMapID+"/climb", request.StepRequest{Target: 1}, auth.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	event, data = nextEvent(t, reader)
	assert.Equal(t, notify.EventMap, event)
	var step response.Step
	require.NoError(t, json.Unmarshal([]byte(data), &step))
	assert.Equal(t, 1, step.Progress.Position)
}

func TestEventsStreamClosedOnBan(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	defer func() { _ = ts.app.Notifier.Close() }()

	auth := register(t, ts, "tairitsu", "dev-a")
	reader := openStream(t, ts, srv.URL, auth)

	rr := ts.do(call{
		method:  http.MethodPost,
		path:    "/api/v1/admin/players/" + auth.PlayerID + "/ban",
		body:    request.BanRequest{Reason: "cheating"},
		headers: map[string]string{middleware.AdminKeyHeader: adminKey},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	event, _ := nextEvent(t, reader)
	assert.Equal(t, notify.EventBanned, event)

	_, err := reader.ReadString('\n')
	for err == nil {
		_, err = reader.ReadString('\n')
	}
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventsRequiresSession(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.request(http.MethodGet, "/api/v1/events", nil, "")
	requireErrorCode(t, rr, http.StatusUnauthorized, 108)
}
