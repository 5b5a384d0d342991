package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/projexia/projexia/internal/api/metrics"
	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

const idempotencyScopeProject = "project"

// ProjectDeps groups the collaborators of ProjectService.
type ProjectDeps struct {
	Projects    ports.ProjectRepository
	Members     ports.MemberRepository
	Tasks       ports.TaskRepository
	Comments    ports.CommentRepository
	Activities  ports.ActivityRepository
	Membership  ports.Membership
	Tx          ports.TxRunner
	Idempotency ports.IdempotencyStore
	Cache       ports.ProjectCache
	Activity    ports.ActivityPublisher
}

type ProjectService struct {
	ProjectDeps
	views viewBuilder
	log   zerolog.Logger
	now   func() time.Time
}

func NewProjectService(deps ProjectDeps, log zerolog.Logger) *ProjectService {
	return &ProjectService{
		ProjectDeps: deps,
		views:       viewBuilder{members: deps.Members, tasks: deps.Tasks, comments: deps.Comments},
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns the projects in which the caller holds a membership. Global
// admins see every project.
func (s *ProjectService) List(ctx context.Context, caller domain.Caller) ([]*domain.ProjectView, error) {
	var ids []string
	if !caller.IsAdmin() {
		var err error
		ids, err = s.Members.ProjectIDsByEmail(ctx, normalizeEmail(caller.Email))
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		if len(ids) == 0 {
			return []*domain.ProjectView{}, nil
		}
	}

	projects, err := s.Projects.List(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return s.views.projects(ctx, projects)
}

func (s *ProjectService) Get(ctx context.Context, caller domain.Caller, projectID string) (*domain.ProjectView, error) {
	if err := s.Membership.Authorize(ctx, caller, projectID); err != nil {
		return nil, err
	}
	return s.view(ctx, projectID)
}

// view serves the nested project through the cache.
func (s *ProjectService) view(ctx context.Context, projectID string) (*domain.ProjectView, error) {
	if v, ok := s.Cache.Get(projectID); ok {
		metrics.ProjectCacheTotal.WithLabelValues("hit").Inc()
		return v, nil
	}
	metrics.ProjectCacheTotal.WithLabelValues("miss").Inc()

	gen := s.Cache.Generation(projectID)
	p, err := s.Projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	views, err := s.views.projects(ctx, []*domain.Project{p})
	if err != nil {
		return nil, err
	}
	s.Cache.AddIfCurrent(projectID, views[0], gen)
	return views[0], nil
}

// Create inserts the project and its initial members as one unit of work.
// The caller becomes an admin member when absent from the list.
func (s *ProjectService) Create(ctx context.Context, caller domain.Caller, in ports.CreateProjectInput) (*domain.ProjectView, error) {
	name := strings.TrimSpace(in.Name)
	desc := strings.TrimSpace(in.Description)
	if name == "" {
		return nil, domain.Invalid("name", "is required")
	}
	if desc == "" {
		return nil, domain.Invalid("description", "is required")
	}
	inputs, err := s.initialMembers(caller, in.Members)
	if err != nil {
		return nil, err
	}

	idemKey := ""
	if in.IdempotencyKey != "" {
		key := caller.UserID + ":" + in.IdempotencyKey
		replayID, owned, err := claimKey(ctx, s.Idempotency, s.log, idempotencyScopeProject, key)
		if err != nil {
			return nil, err
		}
		if replayID != "" {
			return s.view(ctx, replayID)
		}
		if owned {
			idemKey = key
		}
	}

	now := s.now()
	project := &domain.Project{
		Name:        name,
		Description: desc,
		CreatedBy:   caller.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	members := make([]*domain.ProjectMember, len(inputs))

	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Projects.Create(ctx, project); err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		for i, mi := range inputs {
			members[i] = &domain.ProjectMember{
				ProjectID: project.ID,
				Name:      mi.Name,
				Email:     mi.Email,
				Role:      mi.Role,
				AvatarURL: domain.AvatarFor(mi.Email),
				CreatedAt: now,
			}
		}
		if err := s.Members.CreateMany(ctx, members); err != nil {
			return fmt.Errorf("create project members: %w", err)
		}
		return nil
	})
	if err != nil {
		s.compensateCreate(ctx, project.ID)
		if idemKey != "" {
			releaseKey(ctx, s.Idempotency, s.log, idempotencyScopeProject, idemKey)
		}
		return nil, err
	}

	if idemKey != "" {
		rememberKey(ctx, s.Idempotency, s.log, idempotencyScopeProject, idemKey, project.ID)
	}
	metrics.ProjectsCreatedTotal.Inc()
	s.log.Info().Str("project_id", project.ID).Str("user_id", caller.UserID).Int("members", len(members)).Msg("project created")

	view := &domain.ProjectView{
		Project: *project,
		Tasks:   []domain.TaskView{},
		Members: make([]domain.ProjectMember, len(members)),
	}
	for i, m := range members {
		view.Members[i] = *m
	}
	return view, nil
}

// compensateCreate removes a partially written project. Inside a real
// transaction nothing was committed and both deletes are no-ops.
func (s *ProjectService) compensateCreate(ctx context.Context, projectID string) {
	if projectID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := s.Members.DeleteByProject(ctx, projectID); err != nil {
		s.log.Error().Err(err).Str("project_id", projectID).Msg("compensation: delete members failed")
	}
	if err := s.Projects.Delete(ctx, projectID); err != nil && !errors.Is(err, domain.ErrProjectNotFound) {
		s.log.Error().Err(err).Str("project_id", projectID).Msg("compensation: delete project failed")
	}
}

func (s *ProjectService) initialMembers(caller domain.Caller, in []ports.MemberInput) ([]ports.MemberInput, error) {
	out := make([]ports.MemberInput, 0, len(in)+1)
	seen := make(map[string]int, len(in)+1)
	hasAdmin := false

	for _, mi := range in {
		m, err := normalizeMember(mi)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[m.Email]; dup {
			return nil, domain.ErrMemberExists
		}
		seen[m.Email] = len(out)
		if m.Role == domain.MemberAdmin {
			hasAdmin = true
		}
		out = append(out, m)
	}

	email := normalizeEmail(caller.Email)
	idx, present := seen[email]
	switch {
	case !present:
		name := caller.Name
		if name == "" {
			name = email
		}
		out = append(out, ports.MemberInput{Name: name, Email: email, Role: domain.MemberAdmin})
	case !hasAdmin:
		out[idx].Role = domain.MemberAdmin
	}
	return out, nil
}

func normalizeMember(in ports.MemberInput) (ports.MemberInput, error) {
	out := ports.MemberInput{
		Name:  strings.TrimSpace(in.Name),
		Email: normalizeEmail(in.Email),
		Role:  in.Role,
	}
	if out.Name == "" {
		return out, domain.Invalid("name", "is required")
	}
	if !validEmail(out.Email) {
		return out, domain.Invalid("email", "must be a valid email")
	}
	if out.Role == "" {
		out.Role = domain.MemberMember
	}
	if !out.Role.Valid() {
		return out, domain.Invalid("role", "must be one of admin member viewer")
	}
	return out, nil
}

func (s *ProjectService) Update(ctx context.Context, caller domain.Caller, projectID string, patch domain.ProjectPatch) (*domain.Project, error) {
	if err := s.Membership.Authorize(ctx, caller, projectID, adminRoles...); err != nil {
		return nil, err
	}

	p, err := s.Projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return p, nil
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.Invalid("name", "must not be empty")
		}
		p.Name = name
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		if desc == "" {
			return nil, domain.Invalid("description", "must not be empty")
		}
		p.Description = desc
	}
	p.UpdatedAt = s.now()

	if err := s.Projects.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	s.Cache.Invalidate(projectID)
	return p, nil
}

// Delete cascades to comments, tasks, members and the activity feed before
// removing the project.
func (s *ProjectService) Delete(ctx context.Context, caller domain.Caller, projectID string) error {
	if err := s.Membership.Authorize(ctx, caller, projectID, adminRoles...); err != nil {
		return err
	}

	var comments, tasks, members, activities int64
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		ts, err := s.Tasks.ListByProjects(ctx, []string{projectID})
		if err != nil {
			return fmt.Errorf("delete project: list tasks: %w", err)
		}
		if len(ts) > 0 {
			ids := make([]string, len(ts))
			for i, t := range ts {
				ids[i] = t.ID
			}
			if comments, err = s.Comments.DeleteByTasks(ctx, ids); err != nil {
				return fmt.Errorf("delete project: comments: %w", err)
			}
		}
		if tasks, err = s.Tasks.DeleteByProject(ctx, projectID); err != nil {
			return fmt.Errorf("delete project: tasks: %w", err)
		}
		if members, err = s.Members.DeleteByProject(ctx, projectID); err != nil {
			return fmt.Errorf("delete project: members: %w", err)
		}
		if activities, err = s.Activities.DeleteByProject(ctx, projectID); err != nil {
			return fmt.Errorf("delete project: activity: %w", err)
		}
		return s.Projects.Delete(ctx, projectID)
	})
	s.Cache.Invalidate(projectID)
	if err != nil {
		return err
	}

	s.log.Info().
		Str("project_id", projectID).
		Int64("tasks", tasks).
		Int64("members", members).
		Int64("comments", comments).
		Int64("activities", activities).
		Msg("project deleted")
	return nil
}

func (s *ProjectService) InviteMember(ctx context.Context, caller domain.Caller, projectID string, in ports.MemberInput) (*domain.ProjectMember, error) {
	if err := s.Membership.Authorize(ctx, caller, projectID, adminRoles...); err != nil {
		return nil, err
	}
	mi, err := normalizeMember(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.Members.ListByProjects(ctx, []string{projectID})
	if err != nil {
		return nil, fmt.Errorf("invite member: %w", err)
	}
	for _, m := range existing {
		if strings.EqualFold(m.Email, mi.Email) {
			return nil, domain.ErrMemberExists
		}
	}

	member := &domain.ProjectMember{
		ProjectID: projectID,
		Name:      mi.Name,
		Email:     mi.Email,
		Role:      mi.Role,
		AvatarURL: domain.AvatarFor(mi.Email),
		CreatedAt: s.now(),
	}
	if err := s.Members.Create(ctx, member); err != nil {
		return nil, err
	}
	s.Cache.Invalidate(projectID)

	metrics.MembersInvitedTotal.WithLabelValues(string(member.Role)).Inc()
	s.Activity.Publish(domain.Activity{
		ProjectID: projectID,
		ActorID:   caller.UserID,
		Kind:      domain.ActivityMemberInvited,
		To:        member.Email,
		CreatedAt: member.CreatedAt,
	})
	return member, nil
}

func (s *ProjectService) UpdateMemberRole(ctx context.Context, caller domain.Caller, projectID, memberID string, role domain.MemberRole) (*domain.ProjectMember, error) {
	if err := s.Membership.Authorize(ctx, caller, projectID, adminRoles...); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, domain.Invalid("role", "must be one of admin member viewer")
	}

	member, err := s.memberOf(ctx, projectID, memberID)
	if err != nil {
		return nil, err
	}
	if member.Role == role {
		return member, nil
	}
	if member.Role == domain.MemberAdmin {
		if err := s.ensureOtherAdmin(ctx, projectID, memberID); err != nil {
			return nil, err
		}
	}

	if err := s.Members.UpdateRole(ctx, memberID, role); err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	member.Role = role
	s.Cache.Invalidate(projectID)
	return member, nil
}

// RemoveMember deletes the member and unassigns every task it held.
func (s *ProjectService) RemoveMember(ctx context.Context, caller domain.Caller, projectID, memberID string) error {
	if err := s.Membership.Authorize(ctx, caller, projectID, adminRoles...); err != nil {
		return err
	}
	member, err := s.memberOf(ctx, projectID, memberID)
	if err != nil {
		return err
	}
	if member.Role == domain.MemberAdmin {
		if err := s.ensureOtherAdmin(ctx, projectID, memberID); err != nil {
			return err
		}
	}

	now := s.now()
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Members.Delete(ctx, memberID); err != nil {
			return err
		}
		if err := s.Tasks.ClearAssignee(ctx, memberID, now); err != nil {
			return fmt.Errorf("remove member: clear assignments: %w", err)
		}
		return nil
	})
	s.Cache.Invalidate(projectID)
	if err != nil {
		return err
	}

	s.Activity.Publish(domain.Activity{
		ProjectID: projectID,
		ActorID:   caller.UserID,
		Kind:      domain.ActivityMemberRemoved,
		From:      member.Email,
		CreatedAt: now,
	})
	return nil
}

func (s *ProjectService) memberOf(ctx context.Context, projectID, memberID string) (*domain.ProjectMember, error) {
	member, err := s.Members.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.ProjectID != projectID {
		return nil, domain.ErrMemberNotFound
	}
	return member, nil
}

func (s *ProjectService) ensureOtherAdmin(ctx context.Context, projectID, memberID string) error {
	members, err := s.Members.ListByProjects(ctx, []string{projectID})
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	for _, m := range members {
		if m.ID != memberID && m.Role == domain.MemberAdmin {
			return nil
		}
	}
	return domain.ErrLastAdmin
}
