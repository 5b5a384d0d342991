package domain

import "time"

// ActivityKind names an entry in a project's activity feed.
type ActivityKind string

const (
	ActivityTaskCreated       ActivityKind = "task.created"
	ActivityTaskStatusChanged ActivityKind = "task.status_changed"
	ActivityTaskDeleted       ActivityKind = "task.deleted"
	ActivityCommentAdded      ActivityKind = "comment.added"
	ActivityMemberInvited     ActivityKind = "member.invited"
	ActivityMemberRemoved     ActivityKind = "member.removed"
)

// Activity records something that happened inside a project.
type Activity struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"projectId"`
	TaskID    string       `json:"taskId,omitempty"`
	ActorID   string       `json:"actorId"`
	Kind      ActivityKind `json:"kind"`
	From      string       `json:"from,omitempty"`
	To        string       `json:"to,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}
