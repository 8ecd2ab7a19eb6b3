package domain

import (
	"context"
	"time"
)

// DefaultLinkMode is used when the caller does not tag the submission with a
// linking mode.
const DefaultLinkMode = "default"

// SelectionRecord is the committed output of the wizard: the resource ids the
// downstream campaign features consume. Page, AdAccount and Pixel are always
// present in a committed record; SocialProfile and Catalog are optional.
type SelectionRecord struct {
	ID     string `json:"id" bson:"_id,omitempty"`
	UserID string `json:"user_id" bson:"user_id"`
	Mode   string `json:"mode" bson:"mode"`

	PageID   string `json:"page_id" bson:"page_id"`
	PageName string `json:"page_name" bson:"page_name"`

	SocialProfileID   string `json:"social_profile_id,omitempty" bson:"social_profile_id,omitempty"`
	SocialProfileName string `json:"social_profile_name,omitempty" bson:"social_profile_name,omitempty"`

	AdAccountID   string `json:"ad_account_id" bson:"ad_account_id"`
	AdAccountName string `json:"ad_account_name" bson:"ad_account_name"`

	PixelID   string `json:"pixel_id" bson:"pixel_id"`
	PixelName string `json:"pixel_name" bson:"pixel_name"`

	CatalogID   string `json:"catalog_id,omitempty" bson:"catalog_id,omitempty"`
	CatalogName string `json:"catalog_name,omitempty" bson:"catalog_name,omitempty"`

	SubmittedAt time.Time `json:"submitted_at" bson:"submitted_at"`
}

// SelectionRepository persists committed selections. Upsert is keyed by
// (user_id, mode) so a retried submission overwrites rather than duplicates.
type SelectionRepository interface {
	Upsert(ctx context.Context, rec *SelectionRecord) error
	GetByUserAndMode(ctx context.Context, userID, mode string) (*SelectionRecord, error)
}
