package linking_test

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"go.pilab.hu/adlink/domain"
	"go.pilab.hu/adlink/internal/linking"
	"go.pilab.hu/adlink/internal/platform"
	"go.pilab.hu/adlink/log"

	"github.com/rs/zerolog"
)

func testLogger() log.Logger {
	return log.NewZerologAdapter(zerolog.Disabled, false)
}

func testCredential() *domain.Credential {
	return &domain.Credential{
		UserID:         "user-1",
		AccessToken:    "tok-1",
		PlatformUserID: "platform-user-1",
	}
}

// fakePlatform implements linking.PlatformAPI with per-call hooks. Unset
// hooks return empty results.
type fakePlatform struct {
	mu sync.Mutex

	exchange   func(ctx context.Context, code string) (*oauth2.Token, error)
	identity   func(ctx context.Context, accessToken string) (*platform.Identity, error)
	pages      func(ctx context.Context) ([]domain.ResourceItem, error)
	adAccounts func(ctx context.Context) ([]domain.ResourceItem, error)
	pixels     func(ctx context.Context) ([]domain.ResourceItem, error)
	catalogs   func(ctx context.Context) ([]domain.ResourceItem, error)
	social     func(ctx context.Context, pageID string) ([]domain.ResourceItem, error)

	fetchCalls map[string]int
}

func (f *fakePlatform) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchCalls == nil {
		f.fetchCalls = make(map[string]int)
	}
	f.fetchCalls[name]++
}

func (f *fakePlatform) calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls[name]
}

func (f *fakePlatform) AuthCodeURL(state string) string {
	return "https://platform.example.com/dialog/oauth?state=" + state
}

func (f *fakePlatform) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	f.record("exchange")
	if f.exchange != nil {
		return f.exchange(ctx, code)
	}
	return &oauth2.Token{AccessToken: "tok-1"}, nil
}

func (f *fakePlatform) FetchIdentity(ctx context.Context, accessToken string) (*platform.Identity, error) {
	f.record("identity")
	if f.identity != nil {
		return f.identity(ctx, accessToken)
	}
	return &platform.Identity{ID: "platform-user-1"}, nil
}

func (f *fakePlatform) FetchPages(ctx context.Context, _ string) ([]domain.ResourceItem, error) {
	f.record("pages")
	if f.pages != nil {
		return f.pages(ctx)
	}
	return nil, nil
}

func (f *fakePlatform) FetchAdAccounts(ctx context.Context, _ string) ([]domain.ResourceItem, error) {
	f.record("ad_accounts")
	if f.adAccounts != nil {
		return f.adAccounts(ctx)
	}
	return nil, nil
}

func (f *fakePlatform) FetchPixels(ctx context.Context, _ string) ([]domain.ResourceItem, error) {
	f.record("pixels")
	if f.pixels != nil {
		return f.pixels(ctx)
	}
	return nil, nil
}

func (f *fakePlatform) FetchCatalogs(ctx context.Context, _ string) ([]domain.ResourceItem, error) {
	f.record("catalogs")
	if f.catalogs != nil {
		return f.catalogs(ctx)
	}
	return nil, nil
}

func (f *fakePlatform) FetchSocialProfiles(ctx context.Context, _ string, pageID string) ([]domain.ResourceItem, error) {
	f.record("social")
	if f.social != nil {
		return f.social(ctx, pageID)
	}
	return nil, nil
}

var _ linking.PlatformAPI = (*fakePlatform)(nil)

// fakeCredentialRepo is an in-memory domain.CredentialRepository.
type fakeCredentialRepo struct {
	mu      sync.Mutex
	creds   map[string]*domain.Credential
	upserts int
	fail    error
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{creds: make(map[string]*domain.Credential)}
}

func (r *fakeCredentialRepo) Upsert(_ context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	c := *cred
	r.creds[cred.UserID] = &c
	r.upserts++
	return nil
}

func (r *fakeCredentialRepo) GetByUserID(_ context.Context, userID string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[userID]
	if !ok {
		return nil, nil
	}
	c := *cred
	return &c, nil
}

func (r *fakeCredentialRepo) Exists(_ context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.creds[userID]
	return ok, nil
}

func (r *fakeCredentialRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creds, userID)
	return nil
}

// fakeSelectionRepo is an in-memory domain.SelectionRepository keyed by
// (user_id, mode).
type fakeSelectionRepo struct {
	mu      sync.Mutex
	records map[string]*domain.SelectionRecord
	upserts int
	fail    error
}

func newFakeSelectionRepo() *fakeSelectionRepo {
	return &fakeSelectionRepo{records: make(map[string]*domain.SelectionRecord)}
}

func (r *fakeSelectionRepo) Upsert(_ context.Context, rec *domain.SelectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	key := rec.UserID + "/" + rec.Mode
	if existing, ok := r.records[key]; ok {
		rec.ID = existing.ID
	}
	c := *rec
	r.records[key] = &c
	r.upserts++
	return nil
}

func (r *fakeSelectionRepo) GetByUserAndMode(_ context.Context, userID, mode string) (*domain.SelectionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID+"/"+mode]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

func (r *fakeSelectionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func items(kind domain.ResourceKind, ids ...string) []domain.ResourceItem {
	out := make([]domain.ResourceItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.ResourceItem{Kind: kind, ID: id, DisplayName: "Name of " + id})
	}
	return out
}
