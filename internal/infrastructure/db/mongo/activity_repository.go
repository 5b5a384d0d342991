package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/projexia/projexia/internal/core/domain"
)

const activitiesCollection = "activities"

// ActivityRepository persists the project audit trail.
type ActivityRepository struct {
	col *mongo.Collection
}

func NewActivityRepository(db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{col: db.Collection(activitiesCollection)}
}

type mongoActivity struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ProjectID   string             `bson:"project_id"`
	TaskID      string             `bson:"task_id,omitempty"`
	ActorID     string             `bson:"actor_id"`
	Kind        string             `bson:"kind"`
	From        string             `bson:"from,omitempty"`
	To          string             `bson:"to,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	ProcessedAt time.Time          `bson:"processed_at"`
}

// Insert stores a; CreatedAt defaults to the processing time.
func (r *ActivityRepository) Insert(ctx context.Context, a *domain.Activity) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	res, err := r.col.InsertOne(ctx, mongoActivity{
		ProjectID:   a.ProjectID,
		TaskID:      a.TaskID,
		ActorID:     a.ActorID,
		Kind:        string(a.Kind),
		From:        a.From,
		To:          a.To,
		CreatedAt:   a.CreatedAt.UTC(),
		ProcessedAt: now,
	})
	if err != nil {
		return err
	}
	a.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (r *ActivityRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]*domain.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, bson.M{"project_id": projectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	var docs []mongoActivity
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}

	out := make([]*domain.Activity, len(docs))
	for i, d := range docs {
		out[i] = &domain.Activity{
			ID:        d.ID.Hex(),
			ProjectID: d.ProjectID,
			TaskID:    d.TaskID,
			ActorID:   d.ActorID,
			Kind:      domain.ActivityKind(d.Kind),
			From:      d.From,
			To:        d.To,
			CreatedAt: d.CreatedAt,
		}
	}
	return out, nil
}

func (r *ActivityRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *ActivityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}
