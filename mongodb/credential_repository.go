package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/adlink/domain"
)

// CredentialRepositoryMongo implements domain.CredentialRepository.
type CredentialRepositoryMongo struct {
	collection *mongo.Collection
}

// NewCredentialRepositoryMongo creates the repository and ensures its
// indexes.
func NewCredentialRepositoryMongo(ctx context.Context, db *mongo.Database) (domain.CredentialRepository, error) {
	repo := &CredentialRepositoryMongo{
		collection: db.Collection(CredentialsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create platform_credentials indexes")
	}
	return repo, nil
}

func (r *CredentialRepositoryMongo) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			// One live credential per user; the upsert below depends on this.
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", CredentialsCollection, err)
	}
	return nil
}

// Upsert writes the credential keyed by user id. Last-write-wins is the
// intended policy: re-linking always supersedes the previous grant.
func (r *CredentialRepositoryMongo) Upsert(ctx context.Context, cred *domain.Credential) error {
	now := time.Now().UTC()
	cred.UpdatedAt = now

	filter := bson.D{{Key: "user_id", Value: cred.UserID}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "access_token", Value: cred.AccessToken},
			{Key: "platform_user_id", Value: cred.PlatformUserID},
			{Key: "business_id", Value: cred.BusinessID},
			{Key: "updated_at", Value: cred.UpdatedAt},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "user_id", Value: cred.UserID},
			{Key: "created_at", Value: now},
		}},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// GetByUserID returns the credential for a user, or nil when none exists.
func (r *CredentialRepositoryMongo) GetByUserID(ctx context.Context, userID string) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.collection.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&cred)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

// Exists reports whether the user has a stored credential.
func (r *CredentialRepositoryMongo) Exists(ctx context.Context, userID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.D{{Key: "user_id", Value: userID}})
	if err != nil {
		return false, fmt.Errorf("failed to count credentials: %w", err)
	}
	return count > 0, nil
}

// Delete removes the user's credential, used by unlink.
func (r *CredentialRepositoryMongo) Delete(ctx context.Context, userID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.D{{Key: "user_id", Value: userID}})
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
