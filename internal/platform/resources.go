package platform

import (
	"context"
	"fmt"
	"strconv"

	"go.pilab.hu/adlink/domain"
)

type listOpts struct {
	Fields string `url:"fields,omitempty"`
	Limit  int    `url:"limit,omitempty"`
}

const listLimit = 100

// FetchPages lists the pages the token's user administers.
func (c *Client) FetchPages(ctx context.Context, accessToken string) ([]domain.ResourceItem, error) {
	body, err := c.get(ctx, accessToken, "/me/accounts", listOpts{Fields: "id,name,category", Limit: listLimit})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	if err := decodeList(body, &raw); err != nil {
		return nil, err
	}

	items := make([]domain.ResourceItem, 0, len(raw))
	for _, r := range raw {
		attrs := map[string]string{}
		if r.Category != "" {
			attrs["category"] = r.Category
		}
		items = append(items, domain.ResourceItem{
			Kind:        domain.KindPage,
			ID:          r.ID,
			DisplayName: r.Name,
			Attributes:  attrs,
		})
	}
	return items, nil
}

// FetchAdAccounts lists the user's ad accounts.
func (c *Client) FetchAdAccounts(ctx context.Context, accessToken string) ([]domain.ResourceItem, error) {
	body, err := c.get(ctx, accessToken, "/me/adaccounts", listOpts{Fields: "id,account_id,name,currency", Limit: listLimit})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID        string `json:"id"`
		AccountID string `json:"account_id"`
		Name      string `json:"name"`
		Currency  string `json:"currency"`
	}
	if err := decodeList(body, &raw); err != nil {
		return nil, err
	}

	items := make([]domain.ResourceItem, 0, len(raw))
	for _, r := range raw {
		name := r.Name
		if name == "" {
			name = r.AccountID
		}
		attrs := map[string]string{}
		if r.AccountID != "" {
			attrs["account_id"] = r.AccountID
		}
		if r.Currency != "" {
			attrs["currency"] = r.Currency
		}
		items = append(items, domain.ResourceItem{
			Kind:        domain.KindAdAccount,
			ID:          r.ID,
			DisplayName: name,
			Attributes:  attrs,
		})
	}
	return items, nil
}

// FetchPixels lists the user's conversion-tracking pixels.
func (c *Client) FetchPixels(ctx context.Context, accessToken string) ([]domain.ResourceItem, error) {
	body, err := c.get(ctx, accessToken, "/me/adspixels", listOpts{Fields: "id,name", Limit: listLimit})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeList(body, &raw); err != nil {
		return nil, err
	}

	items := make([]domain.ResourceItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, domain.ResourceItem{
			Kind:        domain.KindPixel,
			ID:          r.ID,
			DisplayName: r.Name,
		})
	}
	return items, nil
}

// FetchCatalogs lists the user's product catalogs.
func (c *Client) FetchCatalogs(ctx context.Context, accessToken string) ([]domain.ResourceItem, error) {
	body, err := c.get(ctx, accessToken, "/me/product_catalogs", listOpts{Fields: "id,name,product_count", Limit: listLimit})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		ProductCount int    `json:"product_count"`
	}
	if err := decodeList(body, &raw); err != nil {
		return nil, err
	}

	items := make([]domain.ResourceItem, 0, len(raw))
	for _, r := range raw {
		attrs := map[string]string{}
		if r.ProductCount > 0 {
			attrs["product_count"] = strconv.Itoa(r.ProductCount)
		}
		items = append(items, domain.ResourceItem{
			Kind:        domain.KindCatalog,
			ID:          r.ID,
			DisplayName: r.Name,
			Attributes:  attrs,
		})
	}
	return items, nil
}

// FetchSocialProfiles lists the Instagram profiles connected to one page.
func (c *Client) FetchSocialProfiles(ctx context.Context, accessToken, pageID string) ([]domain.ResourceItem, error) {
	if pageID == "" {
		return nil, fmt.Errorf("platform: page id is required for social profile lookup")
	}
	path := "/" + pageID + "/instagram_accounts"
	body, err := c.get(ctx, accessToken, path, listOpts{Fields: "id,username", Limit: listLimit})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := decodeList(body, &raw); err != nil {
		return nil, err
	}

	items := make([]domain.ResourceItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, domain.ResourceItem{
			Kind:        domain.KindSocialProfile,
			ID:          r.ID,
			DisplayName: r.Username,
		})
	}
	return items, nil
}
