package domain

// ResourceKind discriminates the linkable entity types discovered from the
// advertising platform.
type ResourceKind string

const (
	KindPage          ResourceKind = "page"
	KindAdAccount     ResourceKind = "ad_account"
	KindPixel         ResourceKind = "pixel"
	KindCatalog       ResourceKind = "catalog"
	KindSocialProfile ResourceKind = "social_profile"
)

// SocialProfileNone is the sentinel selection id for an explicit "no social
// profile" choice on the wizard's social-profile step.
const SocialProfileNone = "none"

// ResourceItem is an immutable snapshot of one linkable platform entity.
// Attributes carries kind-specific metadata (currency, category, item count).
type ResourceItem struct {
	Kind        ResourceKind      `json:"kind"`
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// ResourceSet holds the four top-level collections retrieved together, plus
// the page-scoped social-profile collection retrieved after a page is chosen.
type ResourceSet struct {
	Pages          []ResourceItem `json:"pages"`
	AdAccounts     []ResourceItem `json:"ad_accounts"`
	Pixels         []ResourceItem `json:"pixels"`
	Catalogs       []ResourceItem `json:"catalogs"`
	SocialProfiles []ResourceItem `json:"social_profiles"`
}

// AnyFound reports whether any of the four top-level collections is
// non-empty. This, not any single collection, drives retry decisions.
func (rs *ResourceSet) AnyFound() bool {
	return len(rs.Pages) > 0 || len(rs.AdAccounts) > 0 || len(rs.Pixels) > 0 || len(rs.Catalogs) > 0
}

// Items returns the collection for the given kind.
func (rs *ResourceSet) Items(kind ResourceKind) []ResourceItem {
	switch kind {
	case KindPage:
		return rs.Pages
	case KindAdAccount:
		return rs.AdAccounts
	case KindPixel:
		return rs.Pixels
	case KindCatalog:
		return rs.Catalogs
	case KindSocialProfile:
		return rs.SocialProfiles
	}
	return nil
}

// Contains reports whether an item with the given id exists under kind.
func (rs *ResourceSet) Contains(kind ResourceKind, id string) bool {
	for _, item := range rs.Items(kind) {
		if item.ID == id {
			return true
		}
	}
	return false
}

// FindName resolves an item id to its display name within a kind. The empty
// string means the id is not present in the set.
func (rs *ResourceSet) FindName(kind ResourceKind, id string) string {
	for _, item := range rs.Items(kind) {
		if item.ID == id {
			return item.DisplayName
		}
	}
	return ""
}
