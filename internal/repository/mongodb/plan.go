// Package mongodb stores subscription plans in MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ecoride/internal/domain"
	"ecoride/internal/repository"
)

const plansCollection = "subscription_plans"

// PlanRepository is a MongoDB implementation of repository.PlanRepository.
type PlanRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewPlanRepository creates a plan repository on the given database.
func NewPlanRepository(client *mongo.Client, db *mongo.Database) *PlanRepository {
	return &PlanRepository{
		client: client,
		coll:   db.Collection(plansCollection),
	}
}

// EnsureIndexes creates the indexes plan queries rely on.
func (r *PlanRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "vehicle_type", Value: 1}, {Key: "flags.recommended", Value: 1}}},
		{Keys: bson.D{{Key: "flags.active", Value: 1}}},
	})
	return err
}

// Create inserts a new plan.
func (r *PlanRepository) Create(ctx context.Context, plan *domain.SubscriptionPlan) error {
	_, err := r.coll.InsertOne(ctx, plan)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("plan %s: %w", plan.ID, repository.ErrConflict)
	}
	return err
}

// GetByID retrieves a plan by ID.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	var plan domain.SubscriptionPlan
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// List returns plans matching the filter, highest conversion first.
func (r *PlanRepository) List(ctx context.Context, filter repository.PlanFilter) ([]*domain.SubscriptionPlan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "stats.conversion_rate", Value: -1}, {Key: "created_at", Value: 1}})

	cursor, err := r.coll.Find(ctx, filterDoc(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var plans []*domain.SubscriptionPlan
	if err := cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// SetRecommended sets the recommended flag. Turning it on clears every sibling
// of the same vehicle type inside one transaction.
func (r *PlanRepository) SetRecommended(ctx context.Context, id string, recommended bool) error {
	now := time.Now().UTC()

	if !recommended {
		return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
			"$set": bson.M{"flags.recommended": false, "updated_at": now},
		})
	}

	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		var plan domain.SubscriptionPlan
		if err := r.coll.FindOne(sessCtx, bson.M{"_id": id}).Decode(&plan); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, repository.ErrNotFound
			}
			return nil, err
		}

		if _, err := r.coll.UpdateMany(sessCtx, siblingsFilter(plan.VehicleType, id), bson.M{
			"$set": bson.M{"flags.recommended": false, "updated_at": now},
		}); err != nil {
			return nil, err
		}

		_, err := r.coll.UpdateOne(sessCtx, bson.M{"_id": id}, bson.M{
			"$set": bson.M{"flags.recommended": true, "updated_at": now},
		})
		return nil, err
	})
	return err
}

// AddSubscriber increments the subscriber counters and revenue.
func (r *PlanRepository) AddSubscriber(ctx context.Context, id string, revenue float64) error {
	if revenue < 0 {
		revenue = 0
	}
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{
			"stats.total_subscribers":  1,
			"stats.active_subscribers": 1,
			"stats.revenue":            revenue,
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
}

// RemoveSubscriber decrements the active count while it is above zero.
func (r *PlanRepository) RemoveSubscriber(ctx context.Context, id string) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "stats.active_subscribers": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"stats.active_subscribers": -1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Either the plan is missing or the count is already zero.
		_, err := r.GetByID(ctx, id)
		return err
	}
	return nil
}

// IncrementRedemption bumps the redemption counter only while below the cap.
func (r *PlanRepository) IncrementRedemption(ctx context.Context, id string) error {
	result, err := r.coll.UpdateOne(ctx, redemptionFilter(id), bson.M{
		"$inc": bson.M{"discount.current_redemptions": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}

// UpdateRates overwrites the plan's performance rates.
func (r *PlanRepository) UpdateRates(ctx context.Context, id string, conversion, renewal, usage float64) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"stats.conversion_rate": conversion,
			"stats.renewal_rate":    renewal,
			"stats.usage_rate":      usage,
			"updated_at":            time.Now().UTC(),
		},
	})
}

func (r *PlanRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func filterDoc(f repository.PlanFilter) bson.M {
	filter := bson.M{}
	if f.VehicleType != "" {
		filter["vehicle_type"] = f.VehicleType
	}
	if f.ActiveOnly {
		filter["flags.active"] = true
	}
	if f.RecommendedOnly {
		filter["flags.recommended"] = true
	}
	return filter
}

func siblingsFilter(vt domain.VehicleType, id string) bson.M {
	return bson.M{
		"vehicle_type":      vt,
		"_id":               bson.M{"$ne": id},
		"flags.recommended": true,
	}
}

// redemptionFilter matches the plan only while its discount is uncapped or below the cap.
func redemptionFilter(id string) bson.M {
	return bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"discount.max_redemptions": bson.M{"$lte": 0}},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$discount.current_redemptions", "$discount.max_redemptions"}}},
		},
	}
}
