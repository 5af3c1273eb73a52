package versionstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"campaign_workflow/models"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CampaignsCollection is the collection holding one document per campaign.
const CampaignsCollection = "campaigns"

const (
	mongoReadTimeout  = 5 * time.Second
	mongoWriteTimeout = 10 * time.Second
)

// MongoRepository stores each campaign aggregate as a single document keyed by
// _id and scoped by tenant_id. Saves are ReplaceOne calls filtered on the
// loaded write_counter, which makes the optimistic check and the write one
// atomic document operation.
type MongoRepository struct {
	collection *mongo.Collection
	log        zerolog.Logger
}

func NewMongoRepository(db *mongo.Database, log zerolog.Logger) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(CampaignsCollection),
		log:        log.With().Str("component", "mongo_campaign_repository").Logger(),
	}
}

// EnsureIndexes creates the tenant-scoped indexes used by listing and statistics.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoWriteTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create campaign indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	ctx, cancel := context.WithTimeout(ctx, mongoWriteTimeout)
	defer cancel()

	campaign.WriteCounter = 1
	if _, err := r.collection.InsertOne(ctx, campaign); err != nil {
		campaign.WriteCounter = 0
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrVersionConflict
		}
		return fmt.Errorf("failed to insert campaign: %w", err)
	}

	r.log.Debug().Str("tenant_id", campaign.TenantID).Str("campaign_id", campaign.ID).Msg("campaign inserted")
	return nil
}

func (r *MongoRepository) Load(ctx context.Context, tenantID, campaignID string) (*models.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoReadTimeout)
	defer cancel()

	var campaign models.Campaign
	err := r.collection.FindOne(ctx, bson.M{"_id": campaignID, "tenant_id": tenantID}).Decode(&campaign)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NotFoundf("campaign %q", campaignID)
		}
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	return &campaign, nil
}

func (r *MongoRepository) Save(ctx context.Context, campaign *models.Campaign) error {
	ctx, cancel := context.WithTimeout(ctx, mongoWriteTimeout)
	defer cancel()

	expected := campaign.WriteCounter
	campaign.WriteCounter = expected + 1

	result, err := r.collection.ReplaceOne(ctx, bson.M{
		"_id":           campaign.ID,
		"tenant_id":     campaign.TenantID,
		"write_counter": expected,
	}, campaign)
	if err != nil {
		campaign.WriteCounter = expected
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	campaign.WriteCounter = expected
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": campaign.ID, "tenant_id": campaign.TenantID})
	if err != nil {
		return fmt.Errorf("failed to check campaign after missed save: %w", err)
	}
	if n == 0 {
		return models.NotFoundf("campaign %q", campaign.ID)
	}
	r.log.Info().
		Str("tenant_id", campaign.TenantID).
		Str("campaign_id", campaign.ID).
		Int64("write_counter", expected).
		Msg("stale write rejected")
	return models.ErrVersionConflict
}

func (r *MongoRepository) List(ctx context.Context, tenantID string, filter ListFilter, page, pageSize int) ([]CampaignSummary, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoReadTimeout)
	defer cancel()

	query := listQuery(tenantID, filter)
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize)).
		SetProjection(bson.M{"revision_history": 0, "status_history": 0})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, 0, fmt.Errorf("failed to decode campaigns: %w", err)
	}
	items := make([]CampaignSummary, 0, len(campaigns))
	for _, c := range campaigns {
		items = append(items, Summarize(c))
	}
	return items, total, nil
}

func (r *MongoRepository) CountByStatus(ctx context.Context, tenantID string) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoReadTimeout)
	defer cancel()

	pipeline := []bson.M{
		{"$match": bson.M{"tenant_id": tenantID}},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaign stats: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode campaign stats: %w", err)
		}
		counts[row.ID] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read campaign stats: %w", err)
	}
	return counts, nil
}

// listQuery builds the tenant-scoped listing filter.
func listQuery(tenantID string, filter ListFilter) bson.M {
	query := bson.M{"tenant_id": tenantID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Search != "" {
		query["name"] = bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
	}
	return query
}
