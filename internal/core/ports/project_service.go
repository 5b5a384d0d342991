package ports

import (
	"context"
	"time"

	"github.com/projexia/projexia/internal/core/domain"
)

// MemberInput describes a member to add to a project.
type MemberInput struct {
	Name  string
	Email string
	Role  domain.MemberRole
}

// CreateProjectInput carries all data needed to create a project.
type CreateProjectInput struct {
	Name           string
	Description    string
	Members        []MemberInput
	IdempotencyKey string
}

// ProjectService defines use-case operations for projects and their members.
type ProjectService interface {
	List(ctx context.Context, caller domain.Caller) ([]*domain.ProjectView, error)
	Get(ctx context.Context, caller domain.Caller, projectID string) (*domain.ProjectView, error)
	Create(ctx context.Context, caller domain.Caller, in CreateProjectInput) (*domain.ProjectView, error)
	Update(ctx context.Context, caller domain.Caller, projectID string, patch domain.ProjectPatch) (*domain.Project, error)
	Delete(ctx context.Context, caller domain.Caller, projectID string) error

	InviteMember(ctx context.Context, caller domain.Caller, projectID string, in MemberInput) (*domain.ProjectMember, error)
	UpdateMemberRole(ctx context.Context, caller domain.Caller, projectID, memberID string, role domain.MemberRole) (*domain.ProjectMember, error)
	RemoveMember(ctx context.Context, caller domain.Caller, projectID, memberID string) error
}

// CreateTaskInput carries all data needed to create a task.
type CreateTaskInput struct {
	ProjectID      string
	Title          string
	Description    string
	Status         domain.TaskStatus
	Priority       domain.TaskPriority
	DueDate        *time.Time
	AssigneeID     *string
	Attachments    []string
	Tags           []string
	IdempotencyKey string
}

// TaskService defines use-case operations for tasks and comments.
type TaskService interface {
	Get(ctx context.Context, caller domain.Caller, taskID string) (*domain.TaskView, error)
	ListByProject(ctx context.Context, caller domain.Caller, projectID string) ([]domain.TaskView, error)
	Create(ctx context.Context, caller domain.Caller, in CreateTaskInput) (*domain.TaskView, error)
	Update(ctx context.Context, caller domain.Caller, taskID string, patch domain.TaskPatch) (*domain.TaskView, error)
	UpdateStatus(ctx context.Context, caller domain.Caller, taskID string, status domain.TaskStatus) (*domain.TaskView, error)
	Delete(ctx context.Context, caller domain.Caller, taskID string) error
	AddComment(ctx context.Context, caller domain.Caller, taskID, content string) (*domain.Comment, error)
}

// Membership answers whether a caller may act on a project.
type Membership interface {
	// Check returns the caller's role in the project, domain.ErrProjectNotFound
	// when the project does not exist, or domain.ErrNotMember.
	Check(ctx context.Context, projectID, email string) (domain.MemberRole, error)
	// Authorize checks membership and that the role is one of allowed.
	// An empty allowed list accepts any member.
	Authorize(ctx context.Context, caller domain.Caller, projectID string, allowed ...domain.MemberRole) error
	// Grant runs Authorize and returns a context remembering the resolved
	// role, so later Authorize calls for the same caller and project skip
	// storage. It is meant for request-scoped contexts only.
	Grant(ctx context.Context, caller domain.Caller, projectID string, allowed ...domain.MemberRole) (context.Context, error)
}

// ActivityPublisher hands activity entries to an asynchronous writer.
type ActivityPublisher interface {
	Publish(a domain.Activity)
}

// ActivityService records and lists project activity.
type ActivityService interface {
	Record(ctx context.Context, a domain.Activity) error
	List(ctx context.Context, caller domain.Caller, projectID string) ([]*domain.Activity, error)
}
