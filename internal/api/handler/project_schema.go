package handler

// --- Requests ---

type memberRequest struct {
	Name  string `json:"name"  validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role"  validate:"omitempty,oneof=admin member viewer"`
}

type createProjectRequest struct {
	Name        string          `json:"name"        validate:"required"`
	Description string          `json:"description" validate:"required"`
	Members     []memberRequest `json:"members"     validate:"omitempty,dive"`
}

// updateProjectRequest carries an optional name and description; absent
// fields are left unchanged.
type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type memberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin member viewer"`
}
