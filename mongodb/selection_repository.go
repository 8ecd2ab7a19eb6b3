package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/adlink/domain"
)

// SelectionRepositoryMongo implements domain.SelectionRepository.
type SelectionRepositoryMongo struct {
	collection *mongo.Collection
}

// NewSelectionRepositoryMongo creates the repository and ensures its indexes.
func NewSelectionRepositoryMongo(ctx context.Context, db *mongo.Database) (domain.SelectionRepository, error) {
	repo := &SelectionRepositoryMongo{
		collection: db.Collection(SelectionsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create asset_selections indexes")
	}
	return repo, nil
}

func (r *SelectionRepositoryMongo) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			// Resubmission overwrites rather than duplicates.
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "mode", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", SelectionsCollection, err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", SelectionsCollection)
	return nil
}

// Upsert writes the record keyed by (user_id, mode).
func (r *SelectionRepositoryMongo) Upsert(ctx context.Context, rec *domain.SelectionRecord) error {
	filter := bson.D{
		{Key: "user_id", Value: rec.UserID},
		{Key: "mode", Value: rec.Mode},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "page_id", Value: rec.PageID},
			{Key: "page_name", Value: rec.PageName},
			{Key: "social_profile_id", Value: rec.SocialProfileID},
			{Key: "social_profile_name", Value: rec.SocialProfileName},
			{Key: "ad_account_id", Value: rec.AdAccountID},
			{Key: "ad_account_name", Value: rec.AdAccountName},
			{Key: "pixel_id", Value: rec.PixelID},
			{Key: "pixel_name", Value: rec.PixelName},
			{Key: "catalog_id", Value: rec.CatalogID},
			{Key: "catalog_name", Value: rec.CatalogName},
			{Key: "submitted_at", Value: rec.SubmittedAt},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: rec.ID},
			{Key: "user_id", Value: rec.UserID},
			{Key: "mode", Value: rec.Mode},
		}},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert selection record: %w", err)
	}
	return nil
}

// GetByUserAndMode returns the committed record, or nil when none exists.
func (r *SelectionRepositoryMongo) GetByUserAndMode(ctx context.Context, userID, mode string) (*domain.SelectionRecord, error) {
	var rec domain.SelectionRecord
	filter := bson.D{
		{Key: "user_id", Value: userID},
		{Key: "mode", Value: mode},
	}
	err := r.collection.FindOne(ctx, filter).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get selection record: %w", err)
	}
	return &rec, nil
}
