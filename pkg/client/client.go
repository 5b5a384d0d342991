// Package client is a typed Go client for the Projexia HTTP API together
// with an in-memory Store that mirrors the server's project tree.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/projexia/projexia/internal/core/domain"
)

const defaultTimeout = 15 * time.Second

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("projexia: %d %s", e.StatusCode, e.Message)
}

// User is the public view of an account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type MemberRequest struct {
	Name  string            `json:"name"`
	Email string            `json:"email"`
	Role  domain.MemberRole `json:"role,omitempty"`
}

type CreateProjectRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Members     []MemberRequest `json:"members,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CreateTaskRequest struct {
	ProjectID   string              `json:"projectId"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Status      domain.TaskStatus   `json:"status,omitempty"`
	Priority    domain.TaskPriority `json:"priority,omitempty"`
	DueDate     *time.Time          `json:"dueDate,omitempty"`
	AssigneeID  string              `json:"assigneeId,omitempty"`
	Attachments []string            `json:"attachments,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
}

// UpdateTaskRequest is a partial update. Nil fields are not sent; the Clear
// flags send an explicit null.
type UpdateTaskRequest struct {
	Title         *string
	Description   *string
	Status        *domain.TaskStatus
	Priority      *domain.TaskPriority
	DueDate       *time.Time
	ClearDueDate  bool
	AssigneeID    *string
	ClearAssignee bool
	Attachments   *[]string
	Tags          *[]string
}

func (r UpdateTaskRequest) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	if r.Title != nil {
		body["title"] = *r.Title
	}
	if r.Description != nil {
		body["description"] = *r.Description
	}
	if r.Status != nil {
		body["status"] = *r.Status
	}
	if r.Priority != nil {
		body["priority"] = *r.Priority
	}
	switch {
	case r.ClearDueDate:
		body["dueDate"] = nil
	case r.DueDate != nil:
		body["dueDate"] = r.DueDate.UTC().Format(time.RFC3339)
	}
	switch {
	case r.ClearAssignee:
		body["assigneeId"] = nil
	case r.AssigneeID != nil:
		body["assigneeId"] = *r.AssigneeID
	}
	if r.Attachments != nil {
		body["attachments"] = *r.Attachments
	}
	if r.Tags != nil {
		body["tags"] = *r.Tags
	}
	return json.Marshal(body)
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type signupResponse struct {
	User
	Token string `json:"token"`
}

// Client talks to a Projexia server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// --- Auth ---

// Signup creates an account and keeps the returned token.
func (c *Client) Signup(ctx context.Context, name, email, password string) (*User, error) {
	var resp signupResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &resp, nil); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp.User, nil
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp, nil); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp.User, nil
}

// Logout revokes the current token on the server and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u, nil); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateAvatar(ctx context.Context, avatarURL string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPut, "/api/auth/me/avatar", map[string]string{"avatarUrl": avatarURL}, &u, nil); err != nil {
		return nil, err
	}
	return &u, nil
}

// --- Projects ---

func (c *Client) ListProjects(ctx context.Context) ([]*domain.ProjectView, error) {
	var out []*domain.ProjectView
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*domain.ProjectView, error) {
	var out domain.ProjectView
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProject sends idempotencyKey, when set, so a retry returns the
// project created by the first attempt.
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest, idempotencyKey string) (*domain.ProjectView, error) {
	var out domain.ProjectView
	if err := c.do(ctx, http.MethodPost, "/api/projects", req, &out, idempotency(idempotencyKey)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, id string, req UpdateProjectRequest) (*domain.Project, error) {
	var out domain.Project
	if err := c.do(ctx, http.MethodPut, "/api/projects/"+url.PathEscape(id), req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ProjectActivity(ctx context.Context, id string) ([]*domain.Activity, error) {
	var out []*domain.Activity
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id)+"/activity", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) InviteMember(ctx context.Context, projectID string, req MemberRequest) (*domain.ProjectMember, error) {
	var out domain.ProjectMember
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(projectID)+"/invite", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateMemberRole(ctx context.Context, projectID, memberID string, role domain.MemberRole) (*domain.ProjectMember, error) {
	var out domain.ProjectMember
	path := "/api/projects/" + url.PathEscape(projectID) + "/members/" + url.PathEscape(memberID)
	if err := c.do(ctx, http.MethodPut, path, map[string]domain.MemberRole{"role": role}, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveMember(ctx context.Context, projectID, memberID string) error {
	path := "/api/projects/" + url.PathEscape(projectID) + "/members/" + url.PathEscape(memberID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// --- Tasks ---

func (c *Client) ListTasks(ctx context.Context, projectID string) ([]domain.TaskView, error) {
	var out []domain.TaskView
	if err := c.do(ctx, http.MethodGet, "/api/tasks/project/"+url.PathEscape(projectID), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*domain.TaskView, error) {
	var out domain.TaskView
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest, idempotencyKey string) (*domain.TaskView, error) {
	var out domain.TaskView
	if err := c.do(ctx, http.MethodPost, "/api/tasks", req, &out, idempotency(idempotencyKey)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*domain.TaskView, error) {
	var out domain.TaskView
	if err := c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id), req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus) (*domain.TaskView, error) {
	var out domain.TaskView
	body := map[string]domain.TaskStatus{"status": status}
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id)+"/status", body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) AddComment(ctx context.Context, taskID, content string) (*domain.Comment, error) {
	var out domain.Comment
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/comments", body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func idempotency(key string) http.Header {
	if key == "" {
		return nil
	}
	return http.Header{"Idempotency-Key": {key}}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, header http.Header) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(raw, &envelope) != nil || envelope.Error == "" {
			envelope.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
