package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandumcs/opstracker/internal/rbac"
)

func newTestRouter(t *testing.T) (chi.Router, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	handler := NewHandler(nil, newTestService(repo, nil), rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/api/tasks", handler.MountRoutes)
	return r, repo
}

func serveAs(t *testing.T, r http.Handler, role rbac.Role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	state := rbac.NewSessionState(nil, "")
	if role != rbac.RoleUnknown {
		require.NoError(t, state.SetIdentity(context.Background(), rbac.Identity{UserID: "5", Name: "Tester", Email: "t@test.local", Role: role}))
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(rbac.ContextWithState(req.Context(), state))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func TestHandlerCreateAndList(t *testing.T) {
	r, _ := newTestRouter(t)

	res := serveAs(t, r, rbac.RoleDeveloper, http.MethodPost, "/api/tasks",
		`{"title":"Fix export","product":"Billing","issueType":"bug"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = serveAs(t, r, rbac.RoleDeveloper, http.MethodGet, "/api/tasks?status=all&product=Billing", "")
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Success bool   `json:"success"`
		Tasks   []Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "Fix export", body.Tasks[0].Title)
	assert.Equal(t, int64(5), body.Tasks[0].CreatedBy)
}

func TestHandlerCreateRequiresFields(t *testing.T) {
	r, _ := newTestRouter(t)

	res := serveAs(t, r, rbac.RoleAdmin, http.MethodPost, "/api/tasks", `{"title":"only title"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), `"product":"required"`)
	assert.Contains(t, res.Body.String(), `"issueType":"required"`)
}

func TestHandlerAnonymousIsRejected(t *testing.T) {
	r, _ := newTestRouter(t)

	res := serveAs(t, r, rbac.RoleUnknown, http.MethodGet, "/api/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestHandlerInvalidID(t *testing.T) {
	r, _ := newTestRouter(t)

	res := serveAs(t, r, rbac.RoleManager, http.MethodGet, "/api/tasks/abc", "")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = serveAs(t, r, rbac.RoleManager, http.MethodGet, "/api/tasks/42", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestHandlerUpdateAndDelete(t *testing.T) {
	r, _ := newTestRouter(t)
	res := serveAs(t, r, rbac.RoleManager, http.MethodPost, "/api/tasks",
		`{"title":"Slow report","product":"BI","issueType":"perf"}`)
	require.Equal(t, http.StatusCreated, res.Code)

	res = serveAs(t, r, rbac.RoleManager, http.MethodPut, "/api/tasks/1", `{"status":"in-progress"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), `"status":"in-progress"`)
	assert.Contains(t, res.Body.String(), "Updated at")

	res = serveAs(t, r, rbac.RoleManager, http.MethodDelete, "/api/tasks/1", "")
	require.Equal(t, http.StatusOK, res.Code)

	res = serveAs(t, r, rbac.RoleManager, http.MethodDelete, "/api/tasks/1", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestHandlerListRejectsBadDate(t *testing.T) {
	r, _ := newTestRouter(t)

	res := serveAs(t, r, rbac.RoleAdmin, http.MethodGet, "/api/tasks?dateFrom=14-03-2025", "")
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "dateFrom")
}
