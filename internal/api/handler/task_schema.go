package handler

// --- Requests ---

type createTaskRequest struct {
	ProjectID   string   `json:"projectId"   validate:"required"`
	Title       string   `json:"title"       validate:"required"`
	Description string   `json:"description"`
	Status      string   `json:"status"      validate:"omitempty,oneof=backlog todo in-progress review completed"`
	Priority    string   `json:"priority"    validate:"omitempty,oneof=low medium high urgent"`
	DueDate     string   `json:"dueDate"`
	AssigneeID  string   `json:"assigneeId"`
	Attachments []string `json:"attachments"`
	Tags        []string `json:"tags"`
}

// updateTaskRequest is a partial update. Absent keys are left unchanged;
// an explicit null clears dueDate and assigneeId.
type updateTaskRequest struct {
	Title       nullable[string]   `json:"title"       swaggertype:"string"`
	Description nullable[string]   `json:"description" swaggertype:"string"`
	Status      nullable[string]   `json:"status"      swaggertype:"string"`
	Priority    nullable[string]   `json:"priority"    swaggertype:"string"`
	DueDate     nullable[string]   `json:"dueDate"     swaggertype:"string"`
	AssigneeID  nullable[string]   `json:"assigneeId"  swaggertype:"string"`
	Attachments nullable[[]string] `json:"attachments" swaggertype:"array,string"`
	Tags        nullable[[]string] `json:"tags"        swaggertype:"array,string"`
}

type taskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=backlog todo in-progress review completed"`
}

type commentRequest struct {
	Content string `json:"content" validate:"required"`
}
