package client

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/projexia/projexia/internal/core/domain"
)

// ErrUnknownProject is returned when the store holds no project with the given id.
var ErrUnknownProject = errors.New("project not loaded")

// API is the subset of Client the Store drives.
type API interface {
	ListProjects(ctx context.Context) ([]*domain.ProjectView, error)
	CreateProject(ctx context.Context, req CreateProjectRequest, idempotencyKey string) (*domain.ProjectView, error)
	UpdateProject(ctx context.Context, id string, req UpdateProjectRequest) (*domain.Project, error)
	DeleteProject(ctx context.Context, id string) error
	InviteMember(ctx context.Context, projectID string, req MemberRequest) (*domain.ProjectMember, error)
	UpdateMemberRole(ctx context.Context, projectID, memberID string, role domain.MemberRole) (*domain.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID, memberID string) error
	CreateTask(ctx context.Context, req CreateTaskRequest, idempotencyKey string) (*domain.TaskView, error)
	UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*domain.TaskView, error)
	UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus) (*domain.TaskView, error)
	DeleteTask(ctx context.Context, id string) error
	AddComment(ctx context.Context, taskID, content string) (*domain.Comment, error)
}

// Store mirrors the caller's project tree in memory. Every mutation goes to
// the server first and only the server's answer is merged locally. Readers
// receive deep copies.
type Store struct {
	api API
	now func() time.Time

	mu       sync.RWMutex
	projects []*domain.ProjectView
	current  string
}

func NewStore(api API) *Store {
	return &Store{api: api, now: time.Now}
}

// Load replaces the local tree with the server's. The current project is
// kept when it still exists.
func (s *Store) Load(ctx context.Context) error {
	views, err := s.api.ListProjects(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = make([]*domain.ProjectView, 0, len(views))
	for _, v := range views {
		s.projects = append(s.projects, cloneProject(v))
	}
	if s.indexOf(s.current) < 0 {
		s.current = ""
	}
	return nil
}

// Projects returns a snapshot of every loaded project.
func (s *Store) Projects() []*domain.ProjectView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ProjectView, len(s.projects))
	for i, p := range s.projects {
		out[i] = cloneProject(p)
	}
	return out
}

func (s *Store) Project(id string) (*domain.ProjectView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return cloneProject(s.projects[i]), true
}

// SetCurrent tracks projectID as the project being viewed. An empty id clears it.
func (s *Store) SetCurrent(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if projectID != "" && s.indexOf(projectID) < 0 {
		return ErrUnknownProject
	}
	s.current = projectID
	return nil
}

func (s *Store) Current() (*domain.ProjectView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(s.current)
	if i < 0 {
		return nil, false
	}
	return cloneProject(s.projects[i]), true
}

// --- Project mutations ---

func (s *Store) CreateProject(ctx context.Context, req CreateProjectRequest, idempotencyKey string) (*domain.ProjectView, error) {
	view, err := s.api.CreateProject(ctx, req, idempotencyKey)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(view.ID); i >= 0 {
		s.projects[i] = cloneProject(view)
	} else {
		s.projects = append(s.projects, cloneProject(view))
	}
	return cloneProject(view), nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, req UpdateProjectRequest) (*domain.Project, error) {
	project, err := s.api.UpdateProject(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		s.projects[i].Project = *project
	}
	return project, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := s.api.DeleteProject(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		s.projects = append(s.projects[:i], s.projects[i+1:]...)
	}
	if s.current == id {
		s.current = ""
	}
	return nil
}

func (s *Store) InviteMember(ctx context.Context, projectID string, req MemberRequest) (*domain.ProjectMember, error) {
	member, err := s.api.InviteMember(ctx, projectID, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.find(projectID); p != nil {
		p.Members = append(p.Members, *member)
	}
	return member, nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, projectID, memberID string, role domain.MemberRole) (*domain.ProjectMember, error) {
	member, err := s.api.UpdateMemberRole(ctx, projectID, memberID, role)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.find(projectID); p != nil {
		for i := range p.Members {
			if p.Members[i].ID == memberID {
				p.Members[i] = *member
			}
		}
	}
	return member, nil
}

// RemoveMember drops the member and clears its task assignments, matching
// what the server does.
func (s *Store) RemoveMember(ctx context.Context, projectID, memberID string) error {
	if err := s.api.RemoveMember(ctx, projectID, memberID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.find(projectID)
	if p == nil {
		return nil
	}
	members := p.Members[:0]
	for _, m := range p.Members {
		if m.ID != memberID {
			members = append(members, m)
		}
	}
	p.Members = members
	for i := range p.Tasks {
		if a := p.Tasks[i].AssigneeID; a != nil && *a == memberID {
			p.Tasks[i].AssigneeID = nil
		}
	}
	return nil
}

// --- Task mutations ---

func (s *Store) CreateTask(ctx context.Context, req CreateTaskRequest, idempotencyKey string) (*domain.TaskView, error) {
	task, err := s.api.CreateTask(ctx, req, idempotencyKey)
	if err != nil {
		return nil, err
	}
	s.mergeTask(task)
	return cloneTask(*task), nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*domain.TaskView, error) {
	task, err := s.api.UpdateTask(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.mergeTask(task)
	return cloneTask(*task), nil
}

// MoveTask changes the board column of a task.
func (s *Store) MoveTask(ctx context.Context, id string, status domain.TaskStatus) (*domain.TaskView, error) {
	task, err := s.api.UpdateTaskStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.mergeTask(task)
	return cloneTask(*task), nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := s.api.DeleteTask(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		for i := range p.Tasks {
			if p.Tasks[i].ID == id {
				p.Tasks = append(p.Tasks[:i], p.Tasks[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (s *Store) AddComment(ctx context.Context, taskID, content string) (*domain.Comment, error) {
	comment, err := s.api.AddComment(ctx, taskID, content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		for i := range p.Tasks {
			if p.Tasks[i].ID == taskID {
				p.Tasks[i].Comments = append(p.Tasks[i].Comments, *comment)
				p.Tasks[i].UpdatedAt = comment.CreatedAt
			}
		}
	}
	return comment, nil
}

// mergeTask replaces the task in its project or appends it when new.
func (s *Store) mergeTask(task *domain.TaskView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.find(task.ProjectID)
	if p == nil {
		return
	}
	for i := range p.Tasks {
		if p.Tasks[i].ID == task.ID {
			p.Tasks[i] = *cloneTask(*task)
			return
		}
	}
	p.Tasks = append(p.Tasks, *cloneTask(*task))
}

// --- Views ---

// Column is one Kanban column.
type Column struct {
	Status domain.TaskStatus
	Tasks  []domain.TaskView
}

// Board groups a project's tasks into the five status columns in board order.
func (s *Store) Board(projectID string) ([]Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.find(projectID)
	if p == nil {
		return nil, ErrUnknownProject
	}

	columns := make([]Column, len(domain.Statuses))
	index := make(map[domain.TaskStatus]int, len(domain.Statuses))
	for i, st := range domain.Statuses {
		columns[i] = Column{Status: st, Tasks: []domain.TaskView{}}
		index[st] = i
	}
	for _, t := range p.Tasks {
		if i, ok := index[t.Status]; ok {
			columns[i].Tasks = append(columns[i].Tasks, *cloneTask(t))
		}
	}
	return columns, nil
}

// Dashboard summarises every loaded project.
type Dashboard struct {
	Projects int
	Tasks    int
	ByStatus map[domain.TaskStatus]int
	// Overdue lists unfinished tasks past their due date, earliest first.
	Overdue []domain.TaskView
}

func (s *Store) Dashboard() Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	d := Dashboard{
		Projects: len(s.projects),
		ByStatus: make(map[domain.TaskStatus]int, len(domain.Statuses)),
		Overdue:  []domain.TaskView{},
	}
	for _, st := range domain.Statuses {
		d.ByStatus[st] = 0
	}
	for _, p := range s.projects {
		for _, t := range p.Tasks {
			d.Tasks++
			d.ByStatus[t.Status]++
			if t.DueDate != nil && t.DueDate.Before(now) && t.Status != domain.StatusCompleted {
				d.Overdue = append(d.Overdue, *cloneTask(t))
			}
		}
	}
	sort.SliceStable(d.Overdue, func(i, j int) bool {
		return d.Overdue[i].DueDate.Before(*d.Overdue[j].DueDate)
	})
	return d
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, p := range s.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) find(id string) *domain.ProjectView {
	if i := s.indexOf(id); i >= 0 {
		return s.projects[i]
	}
	return nil
}

func cloneProject(p *domain.ProjectView) *domain.ProjectView {
	out := &domain.ProjectView{
		Project: p.Project,
		Members: append([]domain.ProjectMember{}, p.Members...),
		Tasks:   make([]domain.TaskView, len(p.Tasks)),
	}
	for i, t := range p.Tasks {
		out.Tasks[i] = *cloneTask(t)
	}
	return out
}

func cloneTask(t domain.TaskView) *domain.TaskView {
	out := t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	if t.AssigneeID != nil {
		assignee := *t.AssigneeID
		out.AssigneeID = &assignee
	}
	out.Attachments = append([]string{}, t.Attachments...)
	out.Tags = append([]string{}, t.Tags...)
	out.Comments = append([]domain.Comment{}, t.Comments...)
	return &out
}
