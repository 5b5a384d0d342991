package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

// ProjectHandler handles HTTP requests for projects and their members.
// Views are returned in their nested domain shape.
type ProjectHandler struct {
	projects ports.ProjectService
	activity ports.ActivityService
}

func NewProjectHandler(projects ports.ProjectService, activity ports.ActivityService) *ProjectHandler {
	return &ProjectHandler{projects: projects, activity: activity}
}

// List returns the projects the caller belongs to.
//
// @Summary      List projects
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.ProjectView
// @Failure      401  {object}  errorResponse
// @Router       /api/projects [get]
func (h *ProjectHandler) List(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	views, err := h.projects.List(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

// Get returns one project with members, tasks and comments nested.
//
// @Summary      Get project
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  domain.ProjectView
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/projects/{id} [get]
func (h *ProjectHandler) Get(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	view, err := h.projects.Get(c.Request().Context(), caller, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Create creates a project; the caller becomes its admin.
//
// @Summary      Create project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string                false  "Client retry key"
// @Param        body             body      createProjectRequest  true   "Project"
// @Success      201              {object}  domain.ProjectView
// @Failure      400              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Router       /api/projects [post]
func (h *ProjectHandler) Create(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	var req createProjectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in := toCreateProjectInput(req, c.Request().Header.Get(IdempotencyHeader))
	view, err := h.projects.Create(c.Request().Context(), caller, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view)
}

// Update renames or re-describes a project.
//
// @Summary      Update project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Project ID"
// @Param        body  body      updateProjectRequest  true  "Fields to change"
// @Success      200   {object}  domain.Project
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/projects/{id} [put]
func (h *ProjectHandler) Update(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	var req updateProjectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	project, err := h.projects.Update(c.Request().Context(), caller, c.Param("id"), toProjectPatch(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// Delete removes a project with its members, tasks and comments.
//
// @Summary      Delete project
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  messageResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/projects/{id} [delete]
func (h *ProjectHandler) Delete(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	if err := h.projects.Delete(c.Request().Context(), caller, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "project deleted"})
}

// Activity returns the most recent entries of the project feed.
//
// @Summary      Project activity
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {array}   domain.Activity
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/projects/{id}/activity [get]
func (h *ProjectHandler) Activity(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	entries, err := h.activity.List(c.Request().Context(), caller, c.Param("id"))
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*domain.Activity{}
	}
	return c.JSON(http.StatusOK, entries)
}

// Invite adds a member to the project.
//
// @Summary      Invite member
// @Tags         members
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string         true  "Project ID"
// @Param        body  body      memberRequest  true  "Member"
// @Success      201   {object}  domain.ProjectMember
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/projects/{id}/invite [post]
func (h *ProjectHandler) Invite(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	var req memberRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	member, err := h.projects.InviteMember(c.Request().Context(), caller, c.Param("id"), toMemberInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, member)
}

// UpdateMemberRole changes a member's role.
//
// @Summary      Change member role
// @Tags         members
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      string             true  "Project ID"
// @Param        memberId  path      string             true  "Member ID"
// @Param        body      body      memberRoleRequest  true  "Role"
// @Success      200       {object}  domain.ProjectMember
// @Failure      400       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Failure      404       {object}  errorResponse
// @Router       /api/projects/{id}/members/{memberId} [put]
func (h *ProjectHandler) UpdateMemberRole(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	var req memberRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	member, err := h.projects.UpdateMemberRole(c.Request().Context(), caller, c.Param("id"), c.Param("memberId"), domain.MemberRole(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, member)
}

// RemoveMember removes a member and unassigns their tasks.
//
// @Summary      Remove member
// @Tags         members
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      string  true  "Project ID"
// @Param        memberId  path      string  true  "Member ID"
// @Success      200       {object}  messageResponse
// @Failure      400       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Failure      404       {object}  errorResponse
// @Router       /api/projects/{id}/members/{memberId} [delete]
func (h *ProjectHandler) RemoveMember(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}
	if err := h.projects.RemoveMember(c.Request().Context(), caller, c.Param("id"), c.Param("memberId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "member removed"})
}
