package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-chat/internal/clinic"
	"github.com/wolfman30/clinic-chat/pkg/logging"
)

func serveKnowledge(h *KnowledgeHandler, method, target string, body []byte) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Mount("/admin/knowledge", h.Routes())
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func newRedisKnowledgeHandler(t *testing.T) *KnowledgeHandler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewKnowledgeHandler(NewRedisKnowledgeStore(client), nil, logging.New("error"))
}

func decodeKnowledge(t *testing.T, rr *httptest.ResponseRecorder) KnowledgeResponse {
	t.Helper()
	var resp KnowledgeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestGetKnowledgeDefault(t *testing.T) {
	h := newRedisKnowledgeHandler(t)

	rr := serveKnowledge(h, http.MethodGet, "/admin/knowledge/org-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	resp := decodeKnowledge(t, rr)
	assert.Equal(t, "org-a", resp.OrgID)
	assert.Equal(t, "default", resp.Source)
	assert.Zero(t, resp.Version)
	assert.Len(t, resp.Topics, 5)
	assert.Empty(t, resp.Shadowed)
}

func TestReplaceThenGetKnowledge(t *testing.T) {
	h := newRedisKnowledgeHandler(t)
	body, err := json.Marshal(ReplaceKnowledgeRequest{Topics: []KnowledgeEntry{
		{Topic: "pain", Triggers: []string{"dolor"}, Response: "Call {{.Phone}}"},
		{Topic: "back", Triggers: []string{"dolor de espalda"}, Response: "Not our area"},
	}})
	require.NoError(t, err)

	rr := serveKnowledge(h, http.MethodPut, "/admin/knowledge/org-a", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decodeKnowledge(t, rr)
	assert.Equal(t, int64(1), resp.Version)
	assert.Equal(t, "stored", resp.Source)
	require.Len(t, resp.Shadowed, 1)
	assert.Equal(t, "dolor de espalda", resp.Shadowed[0].Trigger)

	rr = serveKnowledge(h, http.MethodGet, "/admin/knowledge/org-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp = decodeKnowledge(t, rr)
	assert.Equal(t, "stored", resp.Source)
	assert.Equal(t, int64(1), resp.Version)
	assert.Equal(t, []string{"pain", "back"}, []string{resp.Topics[0].Topic, resp.Topics[1].Topic})

	rr = serveKnowledge(h, http.MethodDelete, "/admin/knowledge/org-a", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serveKnowledge(h, http.MethodGet, "/admin/knowledge/org-a", nil)
	assert.Equal(t, "default", decodeKnowledge(t, rr).Source)
}

func TestReplaceKnowledgeBadRequests(t *testing.T) {
	h := newRedisKnowledgeHandler(t)

	rr := serveKnowledge(h, http.MethodPut, "/admin/knowledge/org-a", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serveKnowledge(h, http.MethodPut, "/admin/knowledge/org-a", []byte(`{"topics": []}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "no topics")
}

func TestReplaceKnowledgeRejectsUnrenderableTemplates(t *testing.T) {
	h := newRedisKnowledgeHandler(t)
	body := []byte(`{"topics":[{"topic":"pricing","triggers":["precio"],"response":"Call {{.Telefono}}"}]}`)

	rr := serveKnowledge(h, http.MethodPut, "/admin/knowledge/org-a", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid knowledge base")
	assert.Contains(t, rr.Body.String(), "pricing")

	rr = serveKnowledge(h, http.MethodGet, "/admin/knowledge/org-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "default", decodeKnowledge(t, rr).Source, "rejected topics are not stored")
}

func TestReplaceKnowledgeUsesClinicProfile(t *testing.T) {
	stored := clinic.DefaultProfile("org-a")
	stored.Hours = "Sat: 9AM-1PM"
	h := newRedisKnowledgeHandler(t).WithProfiles(stubProfiles{profile: stored}, clinic.DefaultProfile(""))
	body, err := json.Marshal(ReplaceKnowledgeRequest{Topics: []KnowledgeEntry{
		{Topic: "hours", Triggers: []string{"horario"}, Response: "Open {{.Hours}}"},
	}})
	require.NoError(t, err)

	rr := serveKnowledge(h, http.MethodPut, "/admin/knowledge/org-a", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	failing := newRedisKnowledgeHandler(t).WithProfiles(stubProfiles{err: errors.New("redis down")}, clinic.DefaultProfile(""))
	rr = serveKnowledge(failing, http.MethodPut, "/admin/knowledge/org-a", body)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestKnowledgeHandlerWithoutStore(t *testing.T) {
	h := NewKnowledgeHandler(nil, nil, logging.New("error"))

	rr := serveKnowledge(h, http.MethodGet, "/admin/knowledge/org-a", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "default", decodeKnowledge(t, rr).Source)

	rr = serveKnowledge(h, http.MethodPut, "/admin/knowledge/org-a", []byte(`{"topics": []}`))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serveKnowledge(h, http.MethodDelete, "/admin/knowledge/org-a", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

type failingKnowledgeStore struct{}

func (failingKnowledgeStore) Get(context.Context, string) ([]KnowledgeEntry, error) {
	return nil, errors.New("connection refused")
}

func (failingKnowledgeStore) Replace(context.Context, string, []KnowledgeEntry) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingKnowledgeStore) Version(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingKnowledgeStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func TestKnowledgeHandlerStoreFailures(t *testing.T) {
	h := NewKnowledgeHandler(failingKnowledgeStore{}, nil, logging.New("error"))
	body, err := json.Marshal(ReplaceKnowledgeRequest{Topics: DefaultKnowledge()})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, serveKnowledge(h, http.MethodGet, "/admin/knowledge/org-a", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, serveKnowledge(h, http.MethodPut, "/admin/knowledge/org-a", body).Code)
	assert.Equal(t, http.StatusInternalServerError, serveKnowledge(h, http.MethodDelete, "/admin/knowledge/org-a", nil).Code)
}
