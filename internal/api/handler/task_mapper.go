package handler

import (
	"time"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

// dueDateLayouts are tried in order; a bare date is read as midnight UTC.
var dueDateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseDueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.Invalid("dueDate", "must be an RFC3339 timestamp or YYYY-MM-DD date")
}

// --- Request → Service input ---

func toCreateTaskInput(r createTaskRequest, idempotencyKey string) (ports.CreateTaskInput, error) {
	due, err := parseDueDate(r.DueDate)
	if err != nil {
		return ports.CreateTaskInput{}, err
	}
	in := ports.CreateTaskInput{
		ProjectID:      r.ProjectID,
		Title:          r.Title,
		Description:    r.Description,
		Status:         domain.TaskStatus(r.Status),
		Priority:       domain.TaskPriority(r.Priority),
		DueDate:        due,
		Attachments:    r.Attachments,
		Tags:           r.Tags,
		IdempotencyKey: idempotencyKey,
	}
	if r.AssigneeID != "" {
		assignee := r.AssigneeID
		in.AssigneeID = &assignee
	}
	return in, nil
}

func toTaskPatch(r updateTaskRequest) (domain.TaskPatch, error) {
	var patch domain.TaskPatch

	if r.Title.Set {
		title := r.Title.Value
		patch.Title = &title
	}
	if r.Description.Set {
		description := r.Description.Value
		patch.Description = &description
	}
	if r.Status.Set {
		status := domain.TaskStatus(r.Status.Value)
		patch.Status = &status
	}
	if r.Priority.Set {
		priority := domain.TaskPriority(r.Priority.Value)
		patch.Priority = &priority
	}

	if r.DueDate.Set {
		due, err := parseDueDate(r.DueDate.Value)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		if due == nil {
			patch.ClearDueDate = true
		} else {
			patch.DueDate = due
		}
	}

	if r.AssigneeID.Set {
		if r.AssigneeID.Null || r.AssigneeID.Value == "" {
			patch.ClearAssignee = true
		} else {
			assignee := r.AssigneeID.Value
			patch.AssigneeID = &assignee
		}
	}

	if r.Attachments.Set {
		attachments := r.Attachments.Value
		patch.Attachments = &attachments
	}
	if r.Tags.Set {
		tags := r.Tags.Value
		patch.Tags = &tags
	}
	return patch, nil
}
