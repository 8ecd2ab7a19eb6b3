package platform_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/adlink/domain"
	"go.pilab.hu/adlink/internal/platform"
)

func newTestClient(t *testing.T, handler http.Handler) (*platform.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := platform.NewClient(platform.Config{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		RedirectURL:  "https://dashboard.example.com/link/callback",
		GraphURL:     server.URL,
	}, server.Client())
	require.NoError(t, err)
	return client, server
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := platform.NewClient(platform.Config{}, nil)
	assert.ErrorIs(t, err, platform.ErrMisconfigured)
}

func TestExchangeCode(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/access_token" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "auth-code-1", r.FormValue("code"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":5183944}`))
	}))

	token, err := client.ExchangeCode(context.Background(), "auth-code-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token.AccessToken)
}

func TestExchangeCode_Failure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid verification code format.","type":"OAuthException","code":100}}`))
	}))

	_, err := client.ExchangeCode(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestFetchIdentity(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("fields"), "id")
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"platform-user-9","name":"Acme Marketing","business":{"id":"biz-4"}}`))
	}))

	identity, err := client.FetchIdentity(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "platform-user-9", identity.ID)
	assert.Equal(t, "Acme Marketing", identity.Name)
	assert.Equal(t, "biz-4", identity.BusinessID)
}

func TestFetchIdentity_MissingID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"No ID Here"}`))
	}))

	_, err := client.FetchIdentity(context.Background(), "user-token")
	assert.Error(t, err)
}

func TestFetchPages_EnvelopeShape(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/accounts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"p1","name":"Shop","category":"Retail"},
			{"id":"p2","name":"Blog","category":"Media"}
		],"paging":{"cursors":{"before":"a","after":"b"}}}`))
	}))

	items, err := client.FetchPages(context.Background(), "user-token")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.KindPage, items[0].Kind)
	assert.Equal(t, "p1", items[0].ID)
	assert.Equal(t, "Shop", items[0].DisplayName)
	assert.Equal(t, "Retail", items[0].Attributes["category"])
}

func TestFetchPages_BareArrayShape(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"p1","name":"Shop"}]`))
	}))

	items, err := client.FetchPages(context.Background(), "user-token")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ID)
}

func TestFetchPages_UnrecognizedShape(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":"shape"}`))
	}))

	_, err := client.FetchPages(context.Background(), "user-token")
	assert.ErrorIs(t, err, platform.ErrUnrecognizedShape)
}

func TestFetchAdAccounts_AttributesAndNameFallback(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/adaccounts", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[
			{"id":"act_1","account_id":"1","name":"Main","currency":"USD"},
			{"id":"act_2","account_id":"2","currency":"EUR"}
		]}`))
	}))

	items, err := client.FetchAdAccounts(context.Background(), "user-token")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Main", items[0].DisplayName)
	assert.Equal(t, "USD", items[0].Attributes["currency"])
	// Unnamed accounts fall back to the numeric account id.
	assert.Equal(t, "2", items[1].DisplayName)
}

func TestFetchCatalogs_ProductCount(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/product_catalogs", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"c1","name":"Spring","product_count":42}]}`))
	}))

	items, err := client.FetchCatalogs(context.Background(), "user-token")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "42", items[0].Attributes["product_count"])
}

func TestFetchSocialProfiles_Scoped(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page-7/instagram_accounts", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"ig1","username":"acme.shop"}]}`))
	}))

	items, err := client.FetchSocialProfiles(context.Background(), "user-token", "page-7")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.KindSocialProfile, items[0].Kind)
	assert.Equal(t, "acme.shop", items[0].DisplayName)
}

func TestFetchSocialProfiles_RequiresPageID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := client.FetchSocialProfiles(context.Background(), "user-token", "")
	assert.Error(t, err)
}

func TestExpiredToken_IsDistinguished(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Error validating access token: Session has expired.","type":"OAuthException","code":190}}`))
	}))

	_, err := client.FetchSocialProfiles(context.Background(), "stale-token", "page-7")
	assert.ErrorIs(t, err, platform.ErrAuthExpired)
}

func TestServerError_IsNotAuthExpired(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"An unknown error occurred","type":"UnknownError","code":1}}`))
	}))

	_, err := client.FetchPixels(context.Background(), "user-token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, platform.ErrAuthExpired)
}
