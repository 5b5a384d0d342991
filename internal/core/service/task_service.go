package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/projexia/projexia/internal/api/metrics"
	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

const idempotencyScopeTask = "task"

// TaskDeps groups the collaborators of TaskService.
type TaskDeps struct {
	Tasks       ports.TaskRepository
	Comments    ports.CommentRepository
	Members     ports.MemberRepository
	Membership  ports.Membership
	Tx          ports.TxRunner
	Idempotency ports.IdempotencyStore
	Cache       ports.ProjectCache
	Activity    ports.ActivityPublisher
}

type TaskService struct {
	TaskDeps
	views viewBuilder
	log   zerolog.Logger
	now   func() time.Time
}

func NewTaskService(deps TaskDeps, log zerolog.Logger) *TaskService {
	return &TaskService{
		TaskDeps: deps,
		views:    viewBuilder{members: deps.Members, tasks: deps.Tasks, comments: deps.Comments},
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *TaskService) Get(ctx context.Context, caller domain.Caller, taskID string) (*domain.TaskView, error) {
	task, err := s.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.Membership.Authorize(ctx, caller, task.ProjectID); err != nil {
		return nil, err
	}
	return s.withComments(ctx, task)
}

func (s *TaskService) ListByProject(ctx context.Context, caller domain.Caller, projectID string) ([]domain.TaskView, error) {
	if err := s.Membership.Authorize(ctx, caller, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.Tasks.ListByProjects(ctx, []string{projectID})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return s.views.tasksWithComments(ctx, tasks)
}

func (s *TaskService) Create(ctx context.Context, caller domain.Caller, in ports.CreateTaskInput) (*domain.TaskView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.Invalid("title", "is required")
	}
	if in.ProjectID == "" {
		return nil, domain.Invalid("projectId", "is required")
	}
	status := in.Status
	if status == "" {
		status = domain.StatusTodo
	}
	if !status.Valid() {
		return nil, invalidStatus()
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, invalidPriority()
	}

	if err := s.Membership.Authorize(ctx, caller, in.ProjectID, editorRoles...); err != nil {
		return nil, err
	}
	assignee, err := s.checkAssignee(ctx, in.ProjectID, in.AssigneeID)
	if err != nil {
		return nil, err
	}

	idemKey := ""
	if in.IdempotencyKey != "" {
		key := caller.UserID + ":" + in.IdempotencyKey
		replayID, owned, err := claimKey(ctx, s.Idempotency, s.log, idempotencyScopeTask, key)
		if err != nil {
			return nil, err
		}
		if replayID != "" {
			return s.Get(ctx, caller, replayID)
		}
		if owned {
			idemKey = key
		}
	}

	now := s.now()
	task := &domain.Task{
		ProjectID:   in.ProjectID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      status,
		Priority:    priority,
		DueDate:     in.DueDate,
		AssigneeID:  assignee,
		CreatorID:   caller.UserID,
		Attachments: domain.NormalizeSet(in.Attachments),
		Tags:        domain.NormalizeSet(in.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Tasks.Create(ctx, task); err != nil {
		if idemKey != "" {
			releaseKey(ctx, s.Idempotency, s.log, idempotencyScopeTask, idemKey)
		}
		return nil, fmt.Errorf("create task: %w", err)
	}

	if idemKey != "" {
		rememberKey(ctx, s.Idempotency, s.log, idempotencyScopeTask, idemKey, task.ID)
	}
	s.Cache.Invalidate(task.ProjectID)
	metrics.TasksCreatedTotal.WithLabelValues(string(task.Status)).Inc()
	s.Activity.Publish(domain.Activity{
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		ActorID:   caller.UserID,
		Kind:      domain.ActivityTaskCreated,
		To:        string(task.Status),
		CreatedAt: now,
	})
	s.log.Info().Str("task_id", task.ID).Str("project_id", task.ProjectID).Msg("task created")

	return &domain.TaskView{Task: *task, Comments: []domain.Comment{}}, nil
}

// Update writes only the fields present in patch and always refreshes
// UpdatedAt. Fields left out of patch keep whatever value storage holds at
// write time, including changes made by concurrent requests.
func (s *TaskService) Update(ctx context.Context, caller domain.Caller, taskID string, patch domain.TaskPatch) (*domain.TaskView, error) {
	task, err := s.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.Membership.Authorize(ctx, caller, task.ProjectID, editorRoles...); err != nil {
		return nil, err
	}

	patch, err = s.normalize(ctx, task.ProjectID, patch)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.Tasks.Patch(ctx, taskID, patch, now); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	s.Cache.Invalidate(task.ProjectID)

	if patch.AssigneeID != nil && !patch.ClearAssignee {
		if err := s.confirmAssignee(ctx, task.ProjectID, *patch.AssigneeID, now); err != nil {
			return nil, err
		}
	}

	if patch.Status != nil && *patch.Status != task.Status {
		metrics.TaskStatusTransitionsTotal.WithLabelValues(string(task.Status), string(*patch.Status)).Inc()
		s.Activity.Publish(domain.Activity{
			ProjectID: task.ProjectID,
			TaskID:    task.ID,
			ActorID:   caller.UserID,
			Kind:      domain.ActivityTaskStatusChanged,
			From:      string(task.Status),
			To:        string(*patch.Status),
			CreatedAt: now,
		})
	}

	updated, err := s.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.withComments(ctx, updated)
}

// normalize validates patch and returns a copy with trimmed text, deduplicated
// sets and a verified assignee.
func (s *TaskService) normalize(ctx context.Context, projectID string, patch domain.TaskPatch) (domain.TaskPatch, error) {
	out := patch
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return out, domain.Invalid("title", "must not be empty")
		}
		out.Title = &title
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		out.Description = &desc
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return out, invalidStatus()
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return out, invalidPriority()
	}
	if patch.ClearDueDate {
		out.DueDate = nil
	}

	switch {
	case patch.ClearAssignee:
		out.AssigneeID = nil
	case patch.AssigneeID != nil:
		assignee, err := s.checkAssignee(ctx, projectID, patch.AssigneeID)
		if err != nil {
			return out, err
		}
		out.AssigneeID = assignee
		out.ClearAssignee = assignee == nil
	}

	if patch.Attachments != nil {
		set := domain.NormalizeSet(*patch.Attachments)
		out.Attachments = &set
	}
	if patch.Tags != nil {
		set := domain.NormalizeSet(*patch.Tags)
		out.Tags = &set
	}
	return out, nil
}

// confirmAssignee re-checks the member after the write. A member removed
// between checkAssignee and the write has already had its assignments
// cleared, so the one just written is cleared here as well.
func (s *TaskService) confirmAssignee(ctx context.Context, projectID, memberID string, at time.Time) error {
	_, err := s.Members.FindByID(ctx, memberID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrMemberNotFound) {
		return fmt.Errorf("check assignee: %w", err)
	}
	if err := s.Tasks.ClearAssignee(context.WithoutCancel(ctx), memberID, at); err != nil {
		return fmt.Errorf("clear removed assignee: %w", err)
	}
	s.Cache.Invalidate(projectID)
	return domain.Invalid("assigneeId", "must be a member of the project")
}

// UpdateStatus moves the task to another column. Any status may follow any other.
func (s *TaskService) UpdateStatus(ctx context.Context, caller domain.Caller, taskID string, status domain.TaskStatus) (*domain.TaskView, error) {
	if !status.Valid() {
		return nil, invalidStatus()
	}
	return s.Update(ctx, caller, taskID, domain.TaskPatch{Status: &status})
}

// Delete removes the task together with its comments.
func (s *TaskService) Delete(ctx context.Context, caller domain.Caller, taskID string) error {
	task, err := s.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.Membership.Authorize(ctx, caller, task.ProjectID, editorRoles...); err != nil {
		return err
	}

	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.Comments.DeleteByTasks(ctx, []string{taskID}); err != nil {
			return fmt.Errorf("delete task: comments: %w", err)
		}
		return s.Tasks.Delete(ctx, taskID)
	})
	if err != nil {
		return err
	}
	s.Cache.Invalidate(task.ProjectID)

	s.Activity.Publish(domain.Activity{
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		ActorID:   caller.UserID,
		Kind:      domain.ActivityTaskDeleted,
		From:      string(task.Status),
		CreatedAt: s.now(),
	})
	return nil
}

// AddComment appends a comment and refreshes the task's UpdatedAt.
func (s *TaskService) AddComment(ctx context.Context, caller domain.Caller, taskID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.Invalid("content", "is required")
	}

	task, err := s.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.Membership.Authorize(ctx, caller, task.ProjectID, editorRoles...); err != nil {
		return nil, err
	}

	now := s.now()
	comment := &domain.Comment{
		TaskID:    taskID,
		UserID:    caller.UserID,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.Comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}

	if err := s.Tasks.Touch(ctx, taskID, now); err != nil {
		// The comment is stored; a stale updatedAt is not worth failing the request.
		s.log.Warn().Err(err).Str("task_id", taskID).Msg("failed to refresh task after comment")
	}
	s.Cache.Invalidate(task.ProjectID)

	metrics.CommentsAddedTotal.Inc()
	s.Activity.Publish(domain.Activity{
		ProjectID: task.ProjectID,
		TaskID:    taskID,
		ActorID:   caller.UserID,
		Kind:      domain.ActivityCommentAdded,
		CreatedAt: now,
	})
	return comment, nil
}

// checkAssignee returns nil for an empty assignee, or the member id when it
// belongs to the project.
func (s *TaskService) checkAssignee(ctx context.Context, projectID string, assigneeID *string) (*string, error) {
	if assigneeID == nil || *assigneeID == "" {
		return nil, nil
	}
	member, err := s.Members.FindByID(ctx, *assigneeID)
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			return nil, domain.Invalid("assigneeId", "must be a member of the project")
		}
		return nil, fmt.Errorf("check assignee: %w", err)
	}
	if member.ProjectID != projectID {
		return nil, domain.Invalid("assigneeId", "must be a member of the project")
	}
	id := member.ID
	return &id, nil
}

func (s *TaskService) withComments(ctx context.Context, task *domain.Task) (*domain.TaskView, error) {
	views, err := s.views.tasksWithComments(ctx, []*domain.Task{task})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func invalidStatus() error {
	return domain.Invalid("status", "must be one of backlog todo in-progress review completed")
}

func invalidPriority() error {
	return domain.Invalid("priority", "must be one of low medium high urgent")
}
