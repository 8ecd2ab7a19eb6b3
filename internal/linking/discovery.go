package linking

import (
	"context"
	"errors"

	"go.pilab.hu/adlink/domain"
	linkerr "go.pilab.hu/adlink/errors"
	"go.pilab.hu/adlink/internal/platform"
	"go.pilab.hu/adlink/log"
)

// Discovery fetches the linkable resource collections. Each fetch performs
// exactly one authenticated call and never propagates an error: failures are
// logged and absorbed into an empty result with found=false, so one failing
// collection cannot prevent the others from populating the wizard. That
// absorption is a correctness requirement, not dead error handling.
type Discovery struct {
	api    PlatformAPI
	logger log.Logger
}

// NewDiscovery creates a Discovery.
func NewDiscovery(api PlatformAPI, logger log.Logger) *Discovery {
	return &Discovery{api: api, logger: logger}
}

func (d *Discovery) fetch(
	ctx context.Context,
	kind domain.ResourceKind,
	do func(context.Context) ([]domain.ResourceItem, error),
) ([]domain.ResourceItem, bool) {
	items, err := do(ctx)
	if err != nil {
		d.logger.Warn(ctx, "resource fetch failed, treating as empty", map[string]interface{}{
			"kind": string(kind), "error": err.Error(),
		})
		return nil, false
	}
	return items, len(items) > 0
}

// Pages fetches the user's pages. The boolean is "non-empty".
func (d *Discovery) Pages(ctx context.Context, cred *domain.Credential) ([]domain.ResourceItem, bool) {
	return d.fetch(ctx, domain.KindPage, func(ctx context.Context) ([]domain.ResourceItem, error) {
		return d.api.FetchPages(ctx, cred.AccessToken)
	})
}

// AdAccounts fetches the user's ad accounts.
func (d *Discovery) AdAccounts(ctx context.Context, cred *domain.Credential) ([]domain.ResourceItem, bool) {
	return d.fetch(ctx, domain.KindAdAccount, func(ctx context.Context) ([]domain.ResourceItem, error) {
		return d.api.FetchAdAccounts(ctx, cred.AccessToken)
	})
}

// Pixels fetches the user's conversion-tracking pixels.
func (d *Discovery) Pixels(ctx context.Context, cred *domain.Credential) ([]domain.ResourceItem, bool) {
	return d.fetch(ctx, domain.KindPixel, func(ctx context.Context) ([]domain.ResourceItem, error) {
		return d.api.FetchPixels(ctx, cred.AccessToken)
	})
}

// Catalogs fetches the user's product catalogs.
func (d *Discovery) Catalogs(ctx context.Context, cred *domain.Credential) ([]domain.ResourceItem, bool) {
	return d.fetch(ctx, domain.KindCatalog, func(ctx context.Context) ([]domain.ResourceItem, error) {
		return d.api.FetchCatalogs(ctx, cred.AccessToken)
	})
}

// SocialProfiles fetches the profiles connected to one page. Unlike the four
// top-level fetches this one returns an error, but only the expired-credential
// case: the platform's response here carries enough detail to distinguish
// "reconnect required" from a plain empty result.
func (d *Discovery) SocialProfiles(ctx context.Context, cred *domain.Credential, pageID string) ([]domain.ResourceItem, bool, error) {
	items, err := d.api.FetchSocialProfiles(ctx, cred.AccessToken, pageID)
	if err != nil {
		if errors.Is(err, platform.ErrAuthExpired) {
			d.logger.Warn(ctx, "credential expired during social profile fetch", map[string]interface{}{
				"user_id": cred.UserID, "page_id": pageID,
			})
			return nil, false, linkerr.ErrReconnectRequired
		}
		d.logger.Warn(ctx, "social profile fetch failed, treating as empty", map[string]interface{}{
			"page_id": pageID, "error": err.Error(),
		})
		return nil, false, nil
	}
	return items, len(items) > 0, nil
}
