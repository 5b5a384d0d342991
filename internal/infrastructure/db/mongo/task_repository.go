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

const tasksCollection = "tasks"

type TaskRepository struct {
	col *mongo.Collection
}

func NewTaskRepository(db *mongo.Database) *TaskRepository {
	return &TaskRepository{col: db.Collection(tasksCollection)}
}

type mongoTask struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty"`
	ProjectID   primitive.ObjectID  `bson:"project_id"`
	Title       string              `bson:"title"`
	Description string              `bson:"description"`
	Status      string              `bson:"status"`
	Priority    string              `bson:"priority"`
	DueDate     *time.Time          `bson:"due_date"`
	AssigneeID  *primitive.ObjectID `bson:"assignee_id"`
	CreatorID   string              `bson:"creator_id"`
	Attachments []string            `bson:"attachments"`
	Tags        []string            `bson:"tags"`
	CreatedAt   time.Time           `bson:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at"`
}

func toMongoTask(t *domain.Task) (mongoTask, error) {
	pid, ok := objectID(t.ProjectID)
	if !ok {
		return mongoTask{}, domain.ErrProjectNotFound
	}
	doc := mongoTask{
		ProjectID:   pid,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CreatorID:   t.CreatorID,
		Attachments: nonNil(t.Attachments),
		Tags:        nonNil(t.Tags),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.AssigneeID != nil {
		aid, ok := objectID(*t.AssigneeID)
		if !ok {
			return mongoTask{}, domain.Invalid("assigneeId", "must be a member of the project")
		}
		doc.AssigneeID = &aid
	}
	return doc, nil
}

func (mt mongoTask) toDomain() *domain.Task {
	t := &domain.Task{
		ID:          mt.ID.Hex(),
		ProjectID:   mt.ProjectID.Hex(),
		Title:       mt.Title,
		Description: mt.Description,
		Status:      domain.TaskStatus(mt.Status),
		Priority:    domain.TaskPriority(mt.Priority),
		DueDate:     mt.DueDate,
		CreatorID:   mt.CreatorID,
		Attachments: mt.Attachments,
		Tags:        mt.Tags,
		CreatedAt:   mt.CreatedAt,
		UpdatedAt:   mt.UpdatedAt,
	}
	if mt.AssigneeID != nil {
		id := hexOrEmpty(*mt.AssigneeID)
		t.AssigneeID = &id
	}
	if t.Attachments == nil {
		t.Attachments = []string{}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	doc, err := toMongoTask(t)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	t.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mt mongoTask
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&mt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	return mt.toDomain(), nil
}

func (r *TaskRepository) ListByProjects(ctx context.Context, projectIDs []string) ([]*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"project_id": bson.M{"$in": objectIDs(projectIDs)}}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var docs []mongoTask
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	out := make([]*domain.Task, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// Patch $sets only the keys present in p, so concurrent writes to other
// fields (status moves, assignee clears) are never overwritten.
func (r *TaskRepository) Patch(ctx context.Context, id string, p domain.TaskPatch, at time.Time) error {
	set, err := patchFields(p)
	if err != nil {
		return err
	}
	set["updated_at"] = at
	return r.set(ctx, id, set)
}

func (r *TaskRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, bson.M{"updated_at": at})
}

func (r *TaskRepository) set(ctx context.Context, id string, fields bson.M) error {
	oid, ok := objectID(id)
	if !ok {
		return domain.ErrTaskNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func patchFields(p domain.TaskPatch) (bson.M, error) {
	set := bson.M{}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Status != nil {
		set["status"] = string(*p.Status)
	}
	if p.Priority != nil {
		set["priority"] = string(*p.Priority)
	}

	switch {
	case p.ClearDueDate:
		set["due_date"] = nil
	case p.DueDate != nil:
		set["due_date"] = *p.DueDate
	}

	switch {
	case p.ClearAssignee:
		set["assignee_id"] = nil
	case p.AssigneeID != nil:
		aid, ok := objectID(*p.AssigneeID)
		if !ok {
			return nil, domain.Invalid("assigneeId", "must be a member of the project")
		}
		set["assignee_id"] = aid
	}

	if p.Attachments != nil {
		set["attachments"] = nonNil(*p.Attachments)
	}
	if p.Tags != nil {
		set["tags"] = nonNil(*p.Tags)
	}
	return set, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return domain.ErrTaskNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
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

func (r *TaskRepository) ClearAssignee(ctx context.Context, memberID string, at time.Time) error {
	oid, ok := objectID(memberID)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateMany(ctx,
		bson.M{"assignee_id": oid},
		bson.M{"$set": bson.M{"assignee_id": nil, "updated_at": at}},
	)
	return err
}

func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "assignee_id", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
