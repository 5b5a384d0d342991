package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

type stubTaskService struct {
	createFn  func(ctx context.Context, caller domain.Caller, in ports.CreateTaskInput) (*domain.TaskView, error)
	updateFn  func(ctx context.Context, caller domain.Caller, id string, patch domain.TaskPatch) (*domain.TaskView, error)
	statusFn  func(ctx context.Context, caller domain.Caller, id string, status domain.TaskStatus) (*domain.TaskView, error)
	commentFn func(ctx context.Context, caller domain.Caller, id, content string) (*domain.Comment, error)
	deleted   []string
}

func (s *stubTaskService) Get(ctx context.Context, caller domain.Caller, id string) (*domain.TaskView, error) {
	return nil, domain.ErrTaskNotFound
}

func (s *stubTaskService) ListByProject(ctx context.Context, caller domain.Caller, projectID string) ([]domain.TaskView, error) {
	return []domain.TaskView{{Task: domain.Task{ID: "t1", ProjectID: projectID}, Comments: []domain.Comment{}}}, nil
}

func (s *stubTaskService) Create(ctx context.Context, caller domain.Caller, in ports.CreateTaskInput) (*domain.TaskView, error) {
	return s.createFn(ctx, caller, in)
}

func (s *stubTaskService) Update(ctx context.Context, caller domain.Caller, id string, patch domain.TaskPatch) (*domain.TaskView, error) {
	return s.updateFn(ctx, caller, id, patch)
}

func (s *stubTaskService) UpdateStatus(ctx context.Context, caller domain.Caller, id string, status domain.TaskStatus) (*domain.TaskView, error) {
	return s.statusFn(ctx, caller, id, status)
}

func (s *stubTaskService) Delete(ctx context.Context, caller domain.Caller, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubTaskService) AddComment(ctx context.Context, caller domain.Caller, id, content string) (*domain.Comment, error) {
	return s.commentFn(ctx, caller, id, content)
}

func TestTaskHandler_Create(t *testing.T) {
	stub := &stubTaskService{
		createFn: func(ctx context.Context, caller domain.Caller, in ports.CreateTaskInput) (*domain.TaskView, error) {
			if in.ProjectID != "p1" || in.Title != "Write docs" || in.IdempotencyKey != "retry-1" {
				t.Fatalf("unexpected input %+v", in)
			}
			if in.DueDate == nil || !in.DueDate.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
				t.Fatalf("unexpected due date %v", in.DueDate)
			}
			if in.AssigneeID == nil || *in.AssigneeID != "m1" {
				t.Fatalf("unexpected assignee %v", in.AssigneeID)
			}
			return &domain.TaskView{Task: domain.Task{ID: "t1", Title: in.Title}, Comments: []domain.Comment{}}, nil
		},
	}
	h := NewTaskHandler(stub)

	body := `{"projectId":"p1","title":"Write docs","dueDate":"2026-03-01","assigneeId":"m1"}`
	c, rec := newContext(http.MethodPost, "/api/tasks", body, &testCaller)
	c.Request().Header.Set(IdempotencyHeader, "retry-1")
	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestTaskHandler_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"projectId":"p1"}`},
		{"missing project", `{"title":"x"}`},
		{"unknown status", `{"projectId":"p1","title":"x","status":"done"}`},
		{"unknown priority", `{"projectId":"p1","title":"x","priority":"critical"}`},
		{"bad due date", `{"projectId":"p1","title":"x","dueDate":"tomorrow"}`},
	}

	h := NewTaskHandler(&stubTaskService{})
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newContext(http.MethodPost, "/api/tasks", tc.body, &testCaller)
			if err := h.Create(c); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestTaskHandler_Update_OnlySuppliedFields(t *testing.T) {
	stub := &stubTaskService{
		updateFn: func(ctx context.Context, caller domain.Caller, id string, patch domain.TaskPatch) (*domain.TaskView, error) {
			if patch.Status == nil || *patch.Status != domain.StatusCompleted {
				t.Fatalf("expected status patch, got %+v", patch)
			}
			if patch.Title != nil || patch.Description != nil || patch.Priority != nil ||
				patch.DueDate != nil || patch.ClearDueDate || patch.AssigneeID != nil ||
				patch.ClearAssignee || patch.Attachments != nil || patch.Tags != nil {
				t.Fatalf("unexpected fields in patch %+v", patch)
			}
			return &domain.TaskView{Task: domain.Task{ID: id, Status: *patch.Status}}, nil
		},
	}
	h := NewTaskHandler(stub)

	c, rec := newContext(http.MethodPut, "/api/tasks/t1", `{"status":"completed"}`, &testCaller)
	withParams(c, "id", "t1")
	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTaskHandler_Update_NullClears(t *testing.T) {
	stub := &stubTaskService{
		updateFn: func(ctx context.Context, caller domain.Caller, id string, patch domain.TaskPatch) (*domain.TaskView, error) {
			if !patch.ClearDueDate || !patch.ClearAssignee {
				t.Fatalf("expected clear flags, got %+v", patch)
			}
			if patch.Tags == nil || len(*patch.Tags) != 2 {
				t.Fatalf("expected tags replaced, got %+v", patch.Tags)
			}
			return &domain.TaskView{Task: domain.Task{ID: id}}, nil
		},
	}
	h := NewTaskHandler(stub)

	c, _ := newContext(http.MethodPut, "/api/tasks/t1", `{"dueDate":null,"assigneeId":null,"tags":["a","b"]}`, &testCaller)
	withParams(c, "id", "t1")
	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestTaskHandler_UpdateStatus(t *testing.T) {
	stub := &stubTaskService{
		statusFn: func(ctx context.Context, caller domain.Caller, id string, status domain.TaskStatus) (*domain.TaskView, error) {
			return &domain.TaskView{Task: domain.Task{ID: id, Status: status}}, nil
		},
	}
	h := NewTaskHandler(stub)

	c, _ := newContext(http.MethodPatch, "/api/tasks/t1/status", `{"status":"review"}`, &testCaller)
	withParams(c, "id", "t1")
	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	c, _ = newContext(http.MethodPatch, "/api/tasks/t1/status", `{"status":"archived"}`, &testCaller)
	withParams(c, "id", "t1")
	if err := h.UpdateStatus(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTaskHandler_Get_NotFound(t *testing.T) {
	h := NewTaskHandler(&stubTaskService{})

	c, _ := newContext(http.MethodGet, "/api/tasks/zz", "", &testCaller)
	withParams(c, "id", "zz")
	if err := h.Get(c); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskHandler_ListByProject(t *testing.T) {
	h := NewTaskHandler(&stubTaskService{})

	c, rec := newContext(http.MethodGet, "/api/tasks/project/p1", "", &testCaller)
	withParams(c, "projectId", "p1")
	if err := h.ListByProject(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTaskHandler_Delete(t *testing.T) {
	stub := &stubTaskService{}
	h := NewTaskHandler(stub)

	c, _ := newContext(http.MethodDelete, "/api/tasks/t1", "", &testCaller)
	withParams(c, "id", "t1")
	if err := h.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(stub.deleted) != 1 || stub.deleted[0] != "t1" {
		t.Fatalf("unexpected deletions %v", stub.deleted)
	}
}

func TestTaskHandler_AddComment(t *testing.T) {
	stub := &stubTaskService{
		commentFn: func(ctx context.Context, caller domain.Caller, id, content string) (*domain.Comment, error) {
			return &domain.Comment{ID: "c1", TaskID: id, UserID: caller.UserID, Content: content}, nil
		},
	}
	h := NewTaskHandler(stub)

	c, rec := newContext(http.MethodPost, "/api/tasks/t1/comments", `{"content":"looks good"}`, &testCaller)
	withParams(c, "id", "t1")
	if err := h.AddComment(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	c, _ = newContext(http.MethodPost, "/api/tasks/t1/comments", `{"content":""}`, &testCaller)
	withParams(c, "id", "t1")
	if err := h.AddComment(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
