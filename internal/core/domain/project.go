package domain

import "time"

// MemberRole is the flat per-project role of a ProjectMember.
type MemberRole string

const (
	MemberAdmin  MemberRole = "admin"
	MemberMember MemberRole = "member"
	MemberViewer MemberRole = "viewer"
)

// Valid reports whether r is one of the three member roles.
func (r MemberRole) Valid() bool {
	switch r {
	case MemberAdmin, MemberMember, MemberViewer:
		return true
	}
	return false
}

// Project is the aggregate root. Members and Tasks are derived from the
// project_id foreign key carried by each child record.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectMember is a per-project identity, distinct from User.
type ProjectMember struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      MemberRole `json:"role"`
	AvatarURL string     `json:"avatarUrl"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ProjectView is the denormalized read model returned to clients.
type ProjectView struct {
	Project
	Tasks   []TaskView      `json:"tasks"`
	Members []ProjectMember `json:"members"`
}

// ProjectPatch lists the fields of a Project that may be updated.
type ProjectPatch struct {
	Name        *string
	Description *string
}

// Empty reports whether the patch carries no field.
func (p ProjectPatch) Empty() bool {
	return p.Name == nil && p.Description == nil
}
