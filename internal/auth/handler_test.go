package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/chandumcs/opstracker/internal/auth"
	"github.com/chandumcs/opstracker/internal/platform/cache"
	"github.com/chandumcs/opstracker/internal/rbac"
	"github.com/chandumcs/opstracker/internal/shared"
	_ "github.com/chandumcs/opstracker/testing"
)

type stubRepo struct {
	mu       sync.Mutex
	accounts map[string]*auth.Account
	statuses map[string]string
	nextID   int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{accounts: map[string]*auth.Account{}, statuses: map[string]string{}, nextID: 1}
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (s *stubRepo) CreateAccount(ctx context.Context, acct auth.NewAccount) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.Email]; ok {
		return 0, shared.ErrEmailTaken
	}
	id := s.nextID
	s.nextID++
	s.accounts[acct.Email] = &auth.Account{
		ID:           id,
		Name:         acct.Name,
		Email:        acct.Email,
		PasswordHash: acct.PasswordHash,
		Role:         acct.Role,
		CreatedAt:    time.Now(),
	}
	return id, nil
}

func (s *stubRepo) UpdateLoginStatus(ctx context.Context, email, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[strings.ToLower(email)] = status
	return nil
}

func (s *stubRepo) status(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[email]
}

func (s *stubRepo) seed(t *testing.T, email, password string, role rbac.Role) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = &auth.Account{ID: s.nextID, Name: "Seeded", Email: email, PasswordHash: string(hash), Role: role}
	s.nextID++
}

type authEnv struct {
	repo     *stubRepo
	store    *cache.MemoryStore
	sessions *shared.SessionManager
	router   chi.Router
	cookie   *http.Cookie
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	env := &authEnv{repo: newStubRepo(), store: cache.NewMemoryStore(time.Hour)}
	env.sessions = shared.NewSessionManager(env.store, "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(env.repo), env.sessions, shared.NewCSRFManager("csrfsecret"))

	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	r.Route("/api/session", handler.MountSession)
	env.router = r
	return env
}

// do runs one request through the same session plumbing the server uses.
func (e *authEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	sess, err := e.sessions.Load(req.Context(), req)
	require.NoError(t, err)
	state := rbac.NewSessionState(e.store, "identity:"+sess.ID)
	require.NoError(t, state.Restore(req.Context()))

	ctx := rbac.ContextWithState(shared.ContextWithSession(req.Context(), sess), state)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	e.router.ServeHTTP(res, req)
	require.NoError(t, e.sessions.Commit(ctx, res, req, sess))

	for _, c := range res.Result().Cookies() {
		if c.Name == e.sessions.CookieName() {
			if c.MaxAge < 0 {
				e.cookie = nil
			} else {
				e.cookie = c
			}
		}
	}
	return res
}

type sessionBody struct {
	Authenticated bool               `json:"authenticated"`
	User          *rbac.Identity     `json:"user"`
	Role          string             `json:"role"`
	Permissions   rbac.PermissionSet `json:"permissions"`
	ReadOnly      bool               `json:"readOnly"`
	CSRFToken     string             `json:"csrfToken"`
}

func decodeSession(t *testing.T, res *httptest.ResponseRecorder) sessionBody {
	t.Helper()
	var body sessionBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body
}

func TestSessionStartsAnonymous(t *testing.T) {
	env := newAuthEnv(t)

	res := env.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, res.Code)

	body := decodeSession(t, res)
	assert.False(t, body.Authenticated)
	assert.Nil(t, body.User)
	assert.Equal(t, "Unknown", body.Role)
	assert.Equal(t, rbac.DenyAll(), body.Permissions)
	assert.True(t, body.ReadOnly)
	assert.NotEmpty(t, body.CSRFToken)
}

func TestLoginSignsSessionIn(t *testing.T) {
	env := newAuthEnv(t)
	env.repo.seed(t, "ops@test.local", "correctpass", rbac.RoleManager)

	res := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ops@test.local","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, auth.StatusOnline, env.repo.status("ops@test.local"))

	body := decodeSession(t, env.do(t, http.MethodGet, "/api/session", ""))
	require.True(t, body.Authenticated)
	require.NotNil(t, body.User)
	assert.Equal(t, "ops@test.local", body.User.Email)
	assert.Equal(t, rbac.RoleManager, body.User.Role)
	assert.Equal(t, "Manager", body.Role)
	assert.Equal(t, rbac.PermissionsFor(rbac.RoleManager), body.Permissions)
}

func TestLoginRenewsSessionID(t *testing.T) {
	env := newAuthEnv(t)
	env.repo.seed(t, "ops@test.local", "correctpass", rbac.RoleManager)

	env.do(t, http.MethodGet, "/api/session", "")
	require.NotNil(t, env.cookie)
	preLogin := *env.cookie

	res := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ops@test.local","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.NotNil(t, env.cookie)
	assert.NotEqual(t, preLogin.Value, env.cookie.Value)

	_, ok, err := env.store.Load(context.Background(), "identity:"+preLogin.Value)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = env.store.Load(context.Background(), "identity:"+env.cookie.Value)
	require.NoError(t, err)
	assert.True(t, ok)

	signedIn := env.cookie
	env.cookie = &preLogin
	body := decodeSession(t, env.do(t, http.MethodGet, "/api/session", ""))
	assert.False(t, body.Authenticated, "the pre-login id must not carry the sign-in")

	env.cookie = signedIn
	body = decodeSession(t, env.do(t, http.MethodGet, "/api/session", ""))
	assert.True(t, body.Authenticated)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newAuthEnv(t)
	env.repo.seed(t, "ops@test.local", "correctpass", rbac.RoleAdmin)

	res := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ops@test.local","password":"wrongpass"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid email or password")

	body := decodeSession(t, env.do(t, http.MethodGet, "/api/session", ""))
	assert.False(t, body.Authenticated)
}

func TestLoginRejectsMalformedRequest(t *testing.T) {
	env := newAuthEnv(t)

	res := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"not-an-email","password":""}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), `"email":"email"`)
	assert.Contains(t, res.Body.String(), `"password":"required"`)
}

func TestRegisterCreatesAccountAndSignsIn(t *testing.T) {
	env := newAuthEnv(t)

	res := env.do(t, http.MethodPost, "/api/auth/register", `{
		"firstName":"jane","lastName":"DOE","email":"Jane@Test.local",
		"role":"UAT Support","password":"longenough"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	acct, err := env.repo.FindByEmail(context.Background(), "jane@test.local")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", acct.Name)
	assert.Equal(t, rbac.RoleUATSupport, acct.Role)

	body := decodeSession(t, env.do(t, http.MethodGet, "/api/session", ""))
	require.True(t, body.Authenticated)
	assert.False(t, body.Permissions.ShiftHandover)
	assert.True(t, body.Permissions.DailyTracker)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newAuthEnv(t)
	env.repo.seed(t, "taken@test.local", "whatever1", rbac.RoleDeveloper)

	res := env.do(t, http.MethodPost, "/api/auth/register", `{
		"firstName":"a","lastName":"b","email":"taken@test.local",
		"role":"developer","password":"longenough"}`)
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestRegisterUnknownRole(t *testing.T) {
	env := newAuthEnv(t)

	res := env.do(t, http.MethodPost, "/api/auth/register", `{
		"firstName":"a","lastName":"b","email":"new@test.local",
		"role":"superuser","password":"longenough"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), `"role":"unknown"`)
}

func TestLogoutClearsIdentity(t *testing.T) {
	env := newAuthEnv(t)
	env.repo.seed(t, "ops@test.local", "correctpass", rbac.RoleAdmin)

	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/api/auth/login", `{"email":"ops@test.local","password":"correctpass"}`).Code)
	require.NotNil(t, env.cookie)
	oldID := env.cookie.Value

	res := env.do(t, http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, auth.StatusOffline, env.repo.status("ops@test.local"))

	_, ok, err := env.store.Load(context.Background(), "identity:"+oldID)
	require.NoError(t, err)
	assert.False(t, ok, "persisted identity must be cleared")

	body := decodeSession(t, env.do(t, http.MethodGet, "/api/session", ""))
	assert.False(t, body.Authenticated)
	assert.True(t, body.ReadOnly)
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	svc := auth.NewService(repo)

	created, err := svc.SeedAdmin(context.Background(), "Ops Admin", "admin@test.local", "adminpass")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, auth.StatusOffline, repo.status("admin@test.local"))

	created, err = svc.SeedAdmin(context.Background(), "Ops Admin", "admin@test.local", "adminpass")
	require.NoError(t, err)
	assert.False(t, created)

	acct, err := repo.FindByEmail(context.Background(), "admin@test.local")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, acct.Role)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", auth.DisplayName("  jane ", "DOE"))
	assert.Equal(t, "Solo", auth.DisplayName("solo", ""))
}
