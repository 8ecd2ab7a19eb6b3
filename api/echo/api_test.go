package echo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echoserver "github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	linkapi "go.pilab.hu/adlink/api/echo"
	"go.pilab.hu/adlink/domain"
	"go.pilab.hu/adlink/internal/linking"
	"go.pilab.hu/adlink/internal/platform"
	"go.pilab.hu/adlink/log"
	"go.pilab.hu/adlink/middleware"
)

var sessionSecret = []byte("api-test-secret")

// stubPlatform returns fixed resources for every fetch.
type stubPlatform struct{}

func (stubPlatform) AuthCodeURL(state string) string {
	return "https://platform.example.com/dialog/oauth?state=" + state
}

func (stubPlatform) ExchangeCode(context.Context, string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "tok-1"}, nil
}

func (stubPlatform) FetchIdentity(context.Context, string) (*platform.Identity, error) {
	return &platform.Identity{ID: "platform-user-1", Name: "Test User"}, nil
}

func fixedItems(kind domain.ResourceKind, id string) []domain.ResourceItem {
	return []domain.ResourceItem{{Kind: kind, ID: id, DisplayName: "Name of " + id}}
}

func (stubPlatform) FetchPages(context.Context, string) ([]domain.ResourceItem, error) {
	return fixedItems(domain.KindPage, "p1"), nil
}

func (stubPlatform) FetchAdAccounts(context.Context, string) ([]domain.ResourceItem, error) {
	return fixedItems(domain.KindAdAccount, "a1"), nil
}

func (stubPlatform) FetchPixels(context.Context, string) ([]domain.ResourceItem, error) {
	return fixedItems(domain.KindPixel, "x1"), nil
}

func (stubPlatform) FetchCatalogs(context.Context, string) ([]domain.ResourceItem, error) {
	return nil, nil
}

func (stubPlatform) FetchSocialProfiles(context.Context, string, string) ([]domain.ResourceItem, error) {
	return nil, nil
}

type memCredentialRepo struct {
	mu    sync.Mutex
	creds map[string]*domain.Credential
}

func (r *memCredentialRepo) Upsert(_ context.Context, c *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.creds[c.UserID] = &cp
	return nil
}

func (r *memCredentialRepo) GetByUserID(_ context.Context, userID string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCredentialRepo) Exists(_ context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.creds[userID]
	return ok, nil
}

func (r *memCredentialRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creds, userID)
	return nil
}

type memSelectionRepo struct {
	mu      sync.Mutex
	records map[string]*domain.SelectionRecord
}

func (r *memSelectionRepo) Upsert(_ context.Context, rec *domain.SelectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := rec.UserID + "/" + rec.Mode
	if existing, ok := r.records[key]; ok {
		rec.ID = existing.ID
	}
	cp := *rec
	r.records[key] = &cp
	return nil
}

func (r *memSelectionRepo) GetByUserAndMode(_ context.Context, userID, mode string) (*domain.SelectionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID+"/"+mode]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

type testServer struct {
	e     *echoserver.Echo
	creds *memCredentialRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := log.NewZerologAdapter(zerolog.Disabled, false)
	creds := &memCredentialRepo{creds: make(map[string]*domain.Credential)}
	selections := &memSelectionRepo{records: make(map[string]*domain.SelectionRecord)}

	api := stubPlatform{}
	discovery := linking.NewDiscovery(api, logger)
	orchestrator := linking.NewOrchestrator(discovery, nil, logger)
	orchestrator.RetryDelay = 10 * time.Millisecond
	orchestrator.HardTimeout = time.Second
	orchestrator.MaxRetries = 1

	exchanger := linking.NewExchanger(api, creds, logger)
	manager := linking.NewManager(creds, discovery, orchestrator, nil, logger)
	submitter := linking.NewSubmitter(selections, nil, logger)

	e := echoserver.New()
	linkAPI := linkapi.NewLinkAPI(exchanger, manager, submitter, creds, selections, nil)
	linkAPI.RegisterRoutes(e, middleware.SessionAuth(sessionSecret))
	return &testServer{e: e, creds: creds}
}

func sessionToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(sessionSecret)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echoserver.HeaderContentType, echoserver.MIMEApplicationJSON)
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+sessionToken(t, userID))
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) domain.WizardState {
	t.Helper()
	var state domain.WizardState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state
}

// mountSettled mounts the wizard and waits for discovery to resolve.
func (s *testServer) mountSettled(t *testing.T, userID string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/wizard", userID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Eventually(t, func() bool {
		r := s.do(t, http.MethodGet, "/wizard", userID, "")
		return r.Code == http.StatusOK && !decodeState(t, r).IsLoading
	}, time.Second, 10*time.Millisecond)
}

func (s *testServer) linkUser(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, s.creds.Upsert(context.Background(), &domain.Credential{
		UserID:         userID,
		AccessToken:    "tok-1",
		PlatformUserID: "platform-user-1",
	}))
}

func TestHealthz_Public(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRoutes_RequireSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/link/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLinkStart_ReturnsConsentURL(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/link/start", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "state=user-1")
}

func TestLinkCallback_Success(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/link/callback?code=auth-code&state=user-1", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"linked":true`)

	rec = s.do(t, http.MethodGet, "/link/status", "user-1", "")
	assert.Contains(t, rec.Body.String(), `"linked":true`)
}

func TestLinkCallback_UserDenied(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/link/callback?error=access_denied&state=user-1", "user-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "cancelled")
}

func TestLinkCallback_ForeignState(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/link/callback?code=auth-code&state=someone-else", "user-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "security_error")
}

func TestWizardMount_WithoutCredential(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/wizard", "user-1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "reconnect_required")
}

func TestWizardState_NotMounted(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/wizard", "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWizardFlow_SelectAdvanceSubmit(t *testing.T) {
	s := newTestServer(t)
	s.linkUser(t, "user-1")
	s.mountSettled(t, "user-1")

	// Advancing without a page stays on step 1 with a conflict status.
	rec := s.do(t, http.MethodPost, "/wizard/advance", "user-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	steps := []struct {
		kind domain.ResourceKind
		id   string
	}{
		{domain.KindPage, "p1"},
		{domain.KindAdAccount, "a1"},
		{domain.KindPixel, "x1"},
	}
	for _, sel := range steps {
		rec = s.do(t, http.MethodPost, "/wizard/select", "user-1",
			`{"kind":"`+string(sel.kind)+`","id":"`+sel.id+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		rec = s.do(t, http.MethodPost, "/wizard/advance", "user-1", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	// Social and catalog steps pass with nothing available.
	rec = s.do(t, http.MethodPost, "/wizard/advance", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/wizard/advance", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StepReview, decodeState(t, rec).CurrentStep)

	rec = s.do(t, http.MethodPost, "/wizard/submit", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"page_id":"p1"`)

	// The wizard is discarded after a successful submission.
	rec = s.do(t, http.MethodGet, "/wizard", "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/selection", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ad_account_id":"a1"`)
}

func TestWizardSelect_UnknownID(t *testing.T) {
	s := newTestServer(t)
	s.linkUser(t, "user-1")
	s.mountSettled(t, "user-1")

	rec := s.do(t, http.MethodPost, "/wizard/select", "user-1", `{"kind":"page","id":"nope"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestWizardAbandon_TearsDown(t *testing.T) {
	s := newTestServer(t)
	s.linkUser(t, "user-1")
	s.mountSettled(t, "user-1")

	rec := s.do(t, http.MethodDelete, "/wizard", "user-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/wizard", "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelection_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/selection", "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnlink_RemovesCredential(t *testing.T) {
	s := newTestServer(t)
	s.linkUser(t, "user-1")

	rec := s.do(t, http.MethodDelete, "/link", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/link/status", "user-1", "")
	assert.Contains(t, rec.Body.String(), `"linked":false`)
}
