package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/projexia/projexia/internal/core/domain"
)

const membersCollection = "project_members"

type MemberRepository struct {
	col *mongo.Collection
}

func NewMemberRepository(db *mongo.Database) *MemberRepository {
	return &MemberRepository{col: db.Collection(membersCollection)}
}

type mongoMember struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ProjectID primitive.ObjectID `bson:"project_id"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Role      string             `bson:"role"`
	AvatarURL string             `bson:"avatar_url"`
	CreatedAt time.Time          `bson:"created_at"`
}

func toMongoMember(m *domain.ProjectMember) (mongoMember, error) {
	pid, ok := objectID(m.ProjectID)
	if !ok {
		return mongoMember{}, domain.ErrProjectNotFound
	}
	return mongoMember{
		ProjectID: pid,
		Name:      m.Name,
		Email:     m.Email,
		Role:      string(m.Role),
		AvatarURL: m.AvatarURL,
		CreatedAt: m.CreatedAt,
	}, nil
}

func (mm mongoMember) toDomain() *domain.ProjectMember {
	return &domain.ProjectMember{
		ID:        mm.ID.Hex(),
		ProjectID: mm.ProjectID.Hex(),
		Name:      mm.Name,
		Email:     mm.Email,
		Role:      domain.MemberRole(mm.Role),
		AvatarURL: mm.AvatarURL,
		CreatedAt: mm.CreatedAt,
	}
}

func (r *MemberRepository) Create(ctx context.Context, m *domain.ProjectMember) error {
	doc, err := toMongoMember(m)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrMemberExists
		}
		return err
	}
	m.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (r *MemberRepository) CreateMany(ctx context.Context, ms []*domain.ProjectMember) error {
	if len(ms) == 0 {
		return nil
	}
	docs := make([]interface{}, len(ms))
	for i, m := range ms {
		doc, err := toMongoMember(m)
		if err != nil {
			return err
		}
		docs[i] = doc
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertMany(ctx, docs)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrMemberExists
		}
		return err
	}
	for i, id := range res.InsertedIDs {
		ms[i].ID = id.(primitive.ObjectID).Hex()
	}
	return nil
}

func (r *MemberRepository) FindByID(ctx context.Context, id string) (*domain.ProjectMember, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mm mongoMember
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&mm); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return mm.toDomain(), nil
}

func (r *MemberRepository) ListByProjects(ctx context.Context, projectIDs []string) ([]*domain.ProjectMember, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"project_id": bson.M{"$in": objectIDs(projectIDs)}}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	var docs []mongoMember
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}

	out := make([]*domain.ProjectMember, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (r *MemberRepository) ProjectIDsByEmail(ctx context.Context, email string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	values, err := r.col.Distinct(ctx, "project_id", bson.M{"email": email})
	if err != nil {
		return nil, fmt.Errorf("distinct project ids: %w", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if oid, ok := v.(primitive.ObjectID); ok {
			out = append(out, oid.Hex())
		}
	}
	return out, nil
}

func (r *MemberRepository) UpdateRole(ctx context.Context, id string, role domain.MemberRole) error {
	oid, ok := objectID(id)
	if !ok {
		return domain.ErrMemberNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"role": string(role)}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (r *MemberRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return domain.ErrMemberNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (r *MemberRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	oid, ok := objectID(projectID)
	if !ok {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"project_id": oid})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// EnsureIndexes enforces one membership per (project, email).
func (r *MemberRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
