package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-chat/internal/chatbot"
	"github.com/wolfman30/clinic-chat/internal/clinic"
	httpmiddleware "github.com/wolfman30/clinic-chat/internal/http/middleware"
	"github.com/wolfman30/clinic-chat/internal/observability/metrics"
	"github.com/wolfman30/clinic-chat/internal/webchat"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

const testSecret = "router-secret"

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	logger := logging.New("error")
	reg := prometheus.NewRegistry()
	chatMetrics := metrics.NewChatMetrics(reg)

	factory := &chatbot.Factory{
		FallbackProfile: clinic.DefaultProfile(""),
		Recorder:        chatMetrics,
		Logger:          logger,
	}
	chat := webchat.NewHandler(factory, webchat.Options{DefaultOrgID: clinic.DefaultOrgID, Observer: chatMetrics}, logger)
	t.Cleanup(chat.Shutdown)

	return &Config{
		Logger:             logger,
		Webchat:            chat,
		ClinicHandler:      clinic.NewHandler(nil, clinic.DefaultProfile(""), logger),
		KnowledgeHandler:   chatbot.NewKnowledgeHandler(nil, nil, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminAuthSecret:    testSecret,
		CORSAllowedOrigins: []string{"https://diamondsmiles.co"},
	}
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, httpmiddleware.AdminClaims{
		Role: httpmiddleware.AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "clinic-admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := New(newTestConfig(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRouterHealthDegraded(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.HealthCheck = func(context.Context) error { return errors.New("redis: connection refused") }
	router := New(cfg)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "degraded")
}

func TestRouterChatSessionAndMetrics(t *testing.T) {
	router := New(newTestConfig(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat/sessions", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	var session webchat.SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	assert.Equal(t, clinic.DefaultOrgID, session.OrgID)

	body := strings.NewReader(`{"label": "Call"}`)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat/sessions/"+session.SessionID+"/options", body))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `clinicchat_chat_submissions_total{stage="special"} 1`)
	assert.Contains(t, rr.Body.String(), `clinicchat_chat_commands_total{kind="invoke_dialer"} 1`)
	assert.Contains(t, rr.Body.String(), `clinicchat_chat_active_sessions{transport="http"} 1`)
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := New(newTestConfig(t))

	for _, target := range []string{"/admin/clinics/diamond-smiles/profile", "/admin/knowledge/diamond-smiles"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, target)

		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t))
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, target)
	}
}

func TestRouterAdminDisabledWithoutSecret(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AdminAuthSecret = ""
	router := New(cfg)

	req := httptest.NewRequest(http.MethodGet, "/admin/knowledge/diamond-smiles", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	router := New(newTestConfig(t))

	req := httptest.NewRequest(http.MethodOptions, "/chat/sessions", nil)
	req.Header.Set("Origin", "https://diamondsmiles.co")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://diamondsmiles.co", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterChatRateLimit(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ChatRateLimiter = httpmiddleware.NewRateLimiter(0.001, 2)
	t.Cleanup(cfg.ChatRateLimiter.Stop)
	router := New(cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat/sessions", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "health is not rate limited")
}
