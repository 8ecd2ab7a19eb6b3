// Package linking implements the account-linking and selection pipeline: the
// OAuth callback exchange, resource discovery with bounded retries, the
// step-gated selection wizard, and the atomic submission of the final
// selection record.
package linking

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"go.pilab.hu/adlink/domain"
	linkerr "go.pilab.hu/adlink/errors"
	"go.pilab.hu/adlink/internal/metrics"
	"go.pilab.hu/adlink/internal/platform"
	"go.pilab.hu/adlink/log"
)

// PlatformAPI is the slice of the platform client the pipeline depends on.
// *platform.Client satisfies it; tests substitute fakes.
type PlatformAPI interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	FetchIdentity(ctx context.Context, accessToken string) (*platform.Identity, error)
	FetchPages(ctx context.Context, accessToken string) ([]domain.ResourceItem, error)
	FetchAdAccounts(ctx context.Context, accessToken string) ([]domain.ResourceItem, error)
	FetchPixels(ctx context.Context, accessToken string) ([]domain.ResourceItem, error)
	FetchCatalogs(ctx context.Context, accessToken string) ([]domain.ResourceItem, error)
	FetchSocialProfiles(ctx context.Context, accessToken, pageID string) ([]domain.ResourceItem, error)
}

// CallbackParams are the query parameters the platform appends to the
// redirect, plus the authenticated user completing the flow.
type CallbackParams struct {
	Code      string
	State     string
	ErrorCode string
	UserID    string
}

// Platform error codes reported on the redirect when authorization does not
// complete.
const (
	errCodeAccessDenied = "access_denied"
	errCodeUserDenied   = "user_denied"
)

// Exchanger completes the OAuth authorization-code exchange and stores the
// resulting credential. Every failure maps to a stable, user-displayable
// reason; nothing is retried automatically — a manual retry re-runs Complete
// from scratch, which is safe because the credential write is an upsert.
type Exchanger struct {
	api    PlatformAPI
	creds  domain.CredentialRepository
	logger log.Logger
}

// NewExchanger creates an Exchanger.
func NewExchanger(api PlatformAPI, creds domain.CredentialRepository, logger log.Logger) *Exchanger {
	return &Exchanger{api: api, creds: creds, logger: logger}
}

// AuthorizationURL returns the platform consent URL for the outbound leg of
// the flow. The state parameter is the user id; Complete verifies the echo.
func (e *Exchanger) AuthorizationURL(userID string) string {
	return e.api.AuthCodeURL(userID)
}

// Complete validates the callback, exchanges the code, resolves the owning
// identity, and upserts the credential. The anti-forgery check (state must
// equal the current user id) runs before any network call.
func (e *Exchanger) Complete(ctx context.Context, p CallbackParams) (*domain.Credential, error) {
	if p.ErrorCode == errCodeAccessDenied || p.ErrorCode == errCodeUserDenied {
		e.logger.Info(ctx, "link flow cancelled by user", map[string]interface{}{"user_id": p.UserID})
		metrics.IncLinkFailures()
		return nil, linkerr.ErrCancelled
	}
	if p.ErrorCode != "" {
		e.logger.Warn(ctx, "platform reported authorization error", map[string]interface{}{
			"user_id": p.UserID, "error_code": p.ErrorCode,
		})
		metrics.IncLinkFailures()
		return nil, linkerr.Wrap(linkerr.KindTokenExchangeFailed, linkerr.ErrTokenExchange.Reason, nil)
	}

	if p.Code == "" || p.State == "" || p.State != p.UserID {
		e.logger.Warn(ctx, "callback failed anti-forgery validation", map[string]interface{}{"user_id": p.UserID})
		return nil, linkerr.ErrStateMismatch
	}

	token, err := e.api.ExchangeCode(ctx, p.Code)
	if err != nil {
		e.logger.Error(ctx, "token exchange failed", err, map[string]interface{}{"user_id": p.UserID})
		metrics.IncLinkFailures()
		return nil, linkerr.Wrap(linkerr.KindTokenExchangeFailed, linkerr.ErrTokenExchange.Reason, err)
	}

	identity, err := e.api.FetchIdentity(ctx, token.AccessToken)
	if err != nil {
		e.logger.Error(ctx, "identity fetch failed", err, map[string]interface{}{"user_id": p.UserID})
		metrics.IncLinkFailures()
		return nil, linkerr.Wrap(linkerr.KindIdentityFetchFailed, linkerr.ErrIdentityFetch.Reason, err)
	}

	now := time.Now().UTC()
	cred := &domain.Credential{
		UserID:         p.UserID,
		AccessToken:    token.AccessToken,
		PlatformUserID: identity.ID,
		BusinessID:     identity.BusinessID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.creds.Upsert(ctx, cred); err != nil {
		e.logger.Error(ctx, "credential upsert failed", err, map[string]interface{}{"user_id": p.UserID})
		return nil, linkerr.Wrap(linkerr.KindTokenExchangeFailed, linkerr.ErrTokenExchange.Reason, err)
	}

	e.logger.Info(ctx, "platform account linked", map[string]interface{}{
		"user_id": p.UserID, "platform_user_id": identity.ID,
	})
	metrics.IncAccountsLinked()
	return cred, nil
}
