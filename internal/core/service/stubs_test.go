package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory store implementing every repository port
// ---------------------------------------------------------------------------

type memStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]*domain.User
	projects map[string]*domain.Project
	members  map[string]*domain.ProjectMember
	tasks    map[string]*domain.Task
	comments map[string]*domain.Comment

	failMembersCreate error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*domain.User{},
		projects: map[string]*domain.Project{},
		members:  map[string]*domain.ProjectMember{},
		tasks:    map[string]*domain.Task{},
		comments: map[string]*domain.Comment{},
	}
}

func (s *memStore) nextID() string {
	s.seq++
	return fmt.Sprintf("%024x", s.seq)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type userRepo struct{ *memStore }
type projectRepo struct{ *memStore }
type memberRepo struct{ *memStore }
type taskRepo struct{ *memStore }
type commentRepo struct{ *memStore }

func (r userRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.users {
		if e.Email == u.Email {
			return nil, domain.ErrUserExists
		}
	}
	c := *u
	c.ID = r.nextID()
	r.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r userRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r userRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r userRepo) FindByGoogleID(_ context.Context, googleID string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.GoogleID != "" && u.GoogleID == googleID })
}

func (r userRepo) LinkGoogle(_ context.Context, id, googleID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.GoogleID = googleID
	u.UpdatedAt = at
	return nil
}

func (r userRepo) UpdateAvatar(_ context.Context, id, avatarURL string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.AvatarURL = avatarURL
	u.UpdatedAt = at
	return nil
}

func (r projectRepo) Create(_ context.Context, p *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID()
	c := *p
	r.projects[p.ID] = &c
	return nil
}

func (r projectRepo) FindByID(_ context.Context, id string) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	c := *p
	return &c, nil
}

func (r projectRepo) List(_ context.Context, ids []string) ([]*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Project
	for _, p := range r.projects {
		if ids == nil || contains(ids, p.ID) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r projectRepo) Update(_ context.Context, p *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.ID]; !ok {
		return domain.ErrProjectNotFound
	}
	c := *p
	r.projects[p.ID] = &c
	return nil
}

func (r projectRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return domain.ErrProjectNotFound
	}
	delete(r.projects, id)
	return nil
}

func (r memberRepo) insert(m *domain.ProjectMember) error {
	for _, e := range r.members {
		if e.ProjectID == m.ProjectID && strings.EqualFold(e.Email, m.Email) {
			return domain.ErrMemberExists
		}
	}
	m.ID = r.nextID()
	c := *m
	r.members[m.ID] = &c
	return nil
}

func (r memberRepo) Create(_ context.Context, m *domain.ProjectMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(m)
}

func (r memberRepo) CreateMany(_ context.Context, ms []*domain.ProjectMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failMembersCreate != nil {
		return r.failMembersCreate
	}
	for _, m := range ms {
		if err := r.insert(m); err != nil {
			return err
		}
	}
	return nil
}

func (r memberRepo) FindByID(_ context.Context, id string) (*domain.ProjectMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	c := *m
	return &c, nil
}

func (r memberRepo) ListByProjects(_ context.Context, projectIDs []string) ([]*domain.ProjectMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ProjectMember
	for _, m := range r.members {
		if contains(projectIDs, m.ProjectID) {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memberRepo) ProjectIDsByEmail(_ context.Context, email string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.members {
		if strings.EqualFold(m.Email, email) {
			out = append(out, m.ProjectID)
		}
	}
	return out, nil
}

func (r memberRepo) UpdateRole(_ context.Context, id string, role domain.MemberRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return domain.ErrMemberNotFound
	}
	m.Role = role
	return nil
}

func (r memberRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return domain.ErrMemberNotFound
	}
	delete(r.members, id)
	return nil
}

func (r memberRepo) DeleteByProject(_ context.Context, projectID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.members {
		if m.ProjectID == projectID {
			delete(r.members, id)
			n++
		}
	}
	return n, nil
}

func (r taskRepo) Create(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.nextID()
	c := *t
	r.tasks[t.ID] = &c
	return nil
}

func (r taskRepo) FindByID(_ context.Context, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	c := *t
	return &c, nil
}

func (r taskRepo) ListByProjects(_ context.Context, projectIDs []string) ([]*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Task
	for _, t := range r.tasks {
		if contains(projectIDs, t.ProjectID) {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r taskRepo) Patch(_ context.Context, id string, p domain.TaskPatch, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		due := *p.DueDate
		t.DueDate = &due
	}
	switch {
	case p.ClearAssignee:
		t.AssigneeID = nil
	case p.AssigneeID != nil:
		id := *p.AssigneeID
		t.AssigneeID = &id
	}
	if p.Attachments != nil {
		t.Attachments = *p.Attachments
	}
	if p.Tags != nil {
		t.Tags = *p.Tags
	}
	t.UpdatedAt = at
	return nil
}

func (r taskRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	t.UpdatedAt = at
	return nil
}

// racingTaskRepo runs hooks inside the read/write window of a service call
// to simulate concurrent requests. Each hook fires once.
type racingTaskRepo struct {
	taskRepo
	afterFind   func()
	beforePatch func()
}

func (r *racingTaskRepo) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	t, err := r.taskRepo.FindByID(ctx, id)
	if hook := r.afterFind; hook != nil {
		r.afterFind = nil
		hook()
	}
	return t, err
}

func (r *racingTaskRepo) Patch(ctx context.Context, id string, p domain.TaskPatch, at time.Time) error {
	if hook := r.beforePatch; hook != nil {
		r.beforePatch = nil
		hook()
	}
	return r.taskRepo.Patch(ctx, id, p, at)
}

func (r taskRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r taskRepo) DeleteByProject(_ context.Context, projectID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tasks {
		if t.ProjectID == projectID {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

func (r taskRepo) ClearAssignee(_ context.Context, memberID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.AssigneeID != nil && *t.AssigneeID == memberID {
			t.AssigneeID = nil
			t.UpdatedAt = at
		}
	}
	return nil
}

func (r commentRepo) Create(_ context.Context, c *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID()
	cc := *c
	r.comments[c.ID] = &cc
	return nil
}

func (r commentRepo) ListByTasks(_ context.Context, taskIDs []string) ([]*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Comment
	for _, c := range r.comments {
		if contains(taskIDs, c.TaskID) {
			cc := *c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r commentRepo) DeleteByTasks(_ context.Context, taskIDs []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.comments {
		if contains(taskIDs, c.TaskID) {
			delete(r.comments, id)
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Supporting stubs
// ---------------------------------------------------------------------------

type directTx struct{}

func (directTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// stubIdempotency stores "" for a pending reservation.
type stubIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (s *stubIdempotency) Reserve(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[scope+"|"+key]
	switch {
	case !ok:
		s.keys[scope+"|"+key] = ""
		return "", true, nil
	case id == "":
		return "", false, domain.ErrIdempotencyInProgress
	}
	return id, false, nil
}

func (s *stubIdempotency) Remember(_ context.Context, scope, key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[scope+"|"+key] = id
	return nil
}

func (s *stubIdempotency) Release(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[scope+"|"+key] == "" {
		delete(s.keys, scope+"|"+key)
	}
	return nil
}

type stubCache struct {
	mu          sync.Mutex
	views       map[string]*domain.ProjectView
	gens        map[string]uint64
	invalidated []string

	// beforeAdd runs once between a view load and its insertion.
	beforeAdd func()
}

func (c *stubCache) Get(id string) (*domain.ProjectView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[id]
	return v, ok
}

func (c *stubCache) Generation(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id]
}

func (c *stubCache) AddIfCurrent(id string, v *domain.ProjectView, gen uint64) bool {
	if hook := c.beforeAdd; hook != nil {
		c.beforeAdd = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[id] != gen {
		return false
	}
	c.views[id] = v
	return true
}

func (c *stubCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[id]++
	delete(c.views, id)
	c.invalidated = append(c.invalidated, id)
}

type stubPublisher struct {
	mu      sync.Mutex
	entries []domain.Activity
}

func (p *stubPublisher) Publish(a domain.Activity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, a)
}

func (p *stubPublisher) kinds() []domain.ActivityKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ActivityKind, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Kind
	}
	return out
}

type stubBlacklist struct {
	revoked map[string]time.Duration
}

func (b *stubBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	b.revoked[jti] = ttl
	return nil
}

func (b *stubBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := b.revoked[jti]
	return ok, nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	store      *memStore
	cache      *stubCache
	publisher  *stubPublisher
	activities *stubActivityRepo
	idem       *stubIdempotency
	projects   *ProjectService
	tasks      *TaskService

	clockMu sync.Mutex
	clock   time.Time
}

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{
		store:     store,
		cache:      &stubCache{views: map[string]*domain.ProjectView{}, gens: map[string]uint64{}},
		publisher:  &stubPublisher{},
		activities: &stubActivityRepo{},
		idem:       &stubIdempotency{keys: map[string]string{}},
		clock:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	membership := NewMembershipService(projectRepo{store}, memberRepo{store})
	idem := f.idem

	f.projects = NewProjectService(ProjectDeps{
		Projects:    projectRepo{store},
		Members:     memberRepo{store},
		Tasks:       taskRepo{store},
		Comments:    commentRepo{store},
		Activities:  f.activities,
		Membership:  membership,
		Tx:          directTx{},
		Idempotency: idem,
		Cache:       f.cache,
		Activity:    f.publisher,
	}, zerolog.Nop())
	f.tasks = NewTaskService(TaskDeps{
		Tasks:       taskRepo{store},
		Comments:    commentRepo{store},
		Members:     memberRepo{store},
		Membership:  membership,
		Tx:          directTx{},
		Idempotency: idem,
		Cache:       f.cache,
		Activity:    f.publisher,
	}, zerolog.Nop())

	f.projects.now = f.tick
	f.tasks.now = f.tick
	return f
}

// tick advances the fake clock by one second per call.
func (f *fixture) tick() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

var (
	alice = domain.Caller{UserID: "u-alice", Email: "alice@example.com", Name: "Alice", Role: domain.RoleUser}
	bob   = domain.Caller{UserID: "u-bob", Email: "bob@example.com", Name: "Bob", Role: domain.RoleUser}
	carol = domain.Caller{UserID: "u-carol", Email: "carol@example.com", Name: "Carol", Role: domain.RoleUser}
	root  = domain.Caller{UserID: "u-root", Email: "root@example.com", Name: "Root", Role: domain.RoleAdmin}
)

// seedProject creates a project owned by alice with bob as member and carol
// as viewer.
func (f *fixture) seedProject() *domain.ProjectView {
	view, err := f.projects.Create(context.Background(), alice, ports.CreateProjectInput{
		Name:        "Website",
		Description: "Relaunch",
		Members: []ports.MemberInput{
			{Name: "Bob", Email: "bob@example.com", Role: domain.MemberMember},
			{Name: "Carol", Email: "carol@example.com", Role: domain.MemberViewer},
		},
	})
	if err != nil {
		panic(err)
	}
	return view
}

func memberByEmail(view *domain.ProjectView, email string) domain.ProjectMember {
	for _, m := range view.Members {
		if m.Email == email {
			return m
		}
	}
	panic("member not found: " + email)
}

func ptr[T any](v T) *T { return &v }
