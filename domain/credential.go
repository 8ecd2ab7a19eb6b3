package domain

import (
	"context"
	"time"
)

// Credential is the stored access grant for the external advertising platform.
// At most one live credential exists per dashboard user; re-linking overwrites.
type Credential struct {
	UserID         string    `json:"user_id" bson:"user_id"`
	AccessToken    string    `json:"-" bson:"access_token"`
	PlatformUserID string    `json:"platform_user_id" bson:"platform_user_id"`
	BusinessID     string    `json:"business_id,omitempty" bson:"business_id,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// CredentialRepository persists platform credentials keyed by user id.
// Upsert is idempotent; concurrent writers resolve last-write-wins, which is
// the intended policy (re-linking always supersedes).
type CredentialRepository interface {
	Upsert(ctx context.Context, cred *Credential) error
	GetByUserID(ctx context.Context, userID string) (*Credential, error)
	Exists(ctx context.Context, userID string) (bool, error)
	Delete(ctx context.Context, userID string) error
}
