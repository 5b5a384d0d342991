package ports

import (
	"context"
	"time"

	"github.com/projexia/projexia/internal/core/domain"
)

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	// Create inserts p and sets p.ID.
	Create(ctx context.Context, p *domain.Project) error
	FindByID(ctx context.Context, id string) (*domain.Project, error)
	// List returns every project, or only those in ids when ids is non-nil.
	List(ctx context.Context, ids []string) ([]*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id string) error
}

// MemberRepository defines persistence operations for project members.
type MemberRepository interface {
	// Create inserts m and sets m.ID. A duplicate (project, email) pair
	// yields domain.ErrMemberExists.
	Create(ctx context.Context, m *domain.ProjectMember) error
	CreateMany(ctx context.Context, ms []*domain.ProjectMember) error
	FindByID(ctx context.Context, id string) (*domain.ProjectMember, error)
	ListByProjects(ctx context.Context, projectIDs []string) ([]*domain.ProjectMember, error)
	// ProjectIDsByEmail returns the projects in which email holds a membership.
	ProjectIDsByEmail(ctx context.Context, email string) ([]string, error)
	UpdateRole(ctx context.Context, id string, role domain.MemberRole) error
	Delete(ctx context.Context, id string) error
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
}

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	// Create inserts t and sets t.ID.
	Create(ctx context.Context, t *domain.Task) error
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	ListByProjects(ctx context.Context, projectIDs []string) ([]*domain.Task, error)
	// Patch writes only the fields present in patch, plus updated_at. Values
	// must already be validated and normalized.
	Patch(ctx context.Context, id string, patch domain.TaskPatch, at time.Time) error
	// Touch sets updated_at and nothing else.
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
	// ClearAssignee nulls the assignee of every task assigned to memberID.
	ClearAssignee(ctx context.Context, memberID string, at time.Time) error
}

// CommentRepository defines persistence operations for task comments.
type CommentRepository interface {
	Create(ctx context.Context, c *domain.Comment) error
	// ListByTasks returns comments of the given tasks, oldest first.
	ListByTasks(ctx context.Context, taskIDs []string) ([]*domain.Comment, error)
	DeleteByTasks(ctx context.Context, taskIDs []string) (int64, error)
}

// ActivityRepository persists the project activity feed.
type ActivityRepository interface {
	Insert(ctx context.Context, a *domain.Activity) error
	// ListByProject returns the most recent entries first, at most limit.
	ListByProject(ctx context.Context, projectID string, limit int) ([]*domain.Activity, error)
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
}

// TxRunner runs fn as a single unit of work. Implementations that cannot
// provide atomicity run fn directly; callers compensate on failure.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// IdempotencyStore maps a client-supplied key to the ID of the resource it created.
type IdempotencyStore interface {
	// Reserve claims key for a new resource. It reports reserved when the
	// caller now owns the key, returns the remembered id when a resource was
	// already created under it, and domain.ErrIdempotencyInProgress while
	// another request still holds the reservation.
	Reserve(ctx context.Context, scope, key string) (resourceID string, reserved bool, err error)
	// Remember replaces the reservation with the created resource id.
	Remember(ctx context.Context, scope, key, resourceID string) error
	// Release drops a reservation whose create failed.
	Release(ctx context.Context, scope, key string) error
}

// ProjectCache holds denormalized project views between requests.
type ProjectCache interface {
	Get(projectID string) (*domain.ProjectView, bool)
	// Generation changes on every Invalidate of projectID.
	Generation(projectID string) uint64
	// AddIfCurrent stores view only if projectID is still at generation gen.
	AddIfCurrent(projectID string, view *domain.ProjectView, gen uint64) bool
	Invalidate(projectID string)
}
