package domain

import "time"

// TaskStatus is the Kanban column a task sits in.
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "backlog"
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusReview     TaskStatus = "review"
	StatusCompleted  TaskStatus = "completed"
)

// Statuses lists the board columns in display order.
var Statuses = []TaskStatus{StatusBacklog, StatusTodo, StatusInProgress, StatusReview, StatusCompleted}

// Valid reports whether s is one of the five board columns. Any valid
// status may move to any other valid status.
func (s TaskStatus) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task belongs to exactly one project through ProjectID.
type Task struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"projectId"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"dueDate"`
	AssigneeID  *string      `json:"assigneeId"`
	CreatorID   string       `json:"creatorId"`
	Attachments []string     `json:"attachments"`
	Tags        []string     `json:"tags"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Comment is append-only.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskView is a task with its comments nested, oldest first.
type TaskView struct {
	Task
	Comments []Comment `json:"comments"`
}

// TaskPatch lists the fields of a Task that may be updated. Nil means
// "leave unchanged"; the Clear flags null out optional references.
type TaskPatch struct {
	Title         *string
	Description   *string
	Status        *TaskStatus
	Priority      *TaskPriority
	DueDate       *time.Time
	ClearDueDate  bool
	AssigneeID    *string
	ClearAssignee bool
	Attachments   *[]string
	Tags          *[]string
}

// NormalizeSet trims duplicates and empty entries while keeping first-seen order.
func NormalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
