package service

import (
	"context"
	"strings"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

// MembershipService resolves a caller's role inside a project. Members are
// loaded per request and never cached across requests.
type MembershipService struct {
	projects ports.ProjectRepository
	members  ports.MemberRepository
}

func NewMembershipService(projects ports.ProjectRepository, members ports.MemberRepository) *MembershipService {
	return &MembershipService{projects: projects, members: members}
}

type grantKey struct{}

// grant is a role resolved earlier in the same request.
type grant struct {
	userID    string
	projectID string
	role      domain.MemberRole
}

func (s *MembershipService) Check(ctx context.Context, projectID, email string) (domain.MemberRole, error) {
	if _, err := s.projects.FindByID(ctx, projectID); err != nil {
		return "", err
	}

	members, err := s.members.ListByProjects(ctx, []string{projectID})
	if err != nil {
		return "", err
	}

	roles := make(map[string]domain.MemberRole, len(members))
	for _, m := range members {
		roles[strings.ToLower(m.Email)] = m.Role
	}
	role, ok := roles[strings.ToLower(email)]
	if !ok {
		return "", domain.ErrNotMember
	}
	return role, nil
}

func (s *MembershipService) Authorize(ctx context.Context, caller domain.Caller, projectID string, allowed ...domain.MemberRole) error {
	role, err := s.resolve(ctx, caller, projectID)
	if err != nil {
		return err
	}
	return permit(role, allowed)
}

func (s *MembershipService) Grant(ctx context.Context, caller domain.Caller, projectID string, allowed ...domain.MemberRole) (context.Context, error) {
	role, err := s.resolve(ctx, caller, projectID)
	if err != nil {
		return ctx, err
	}
	if err := permit(role, allowed); err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, grantKey{}, grant{userID: caller.UserID, projectID: projectID, role: role}), nil
}

// resolve returns the caller's effective role. Global admins act as project
// admins on every existing project.
func (s *MembershipService) resolve(ctx context.Context, caller domain.Caller, projectID string) (domain.MemberRole, error) {
	if g, ok := ctx.Value(grantKey{}).(grant); ok && g.userID == caller.UserID && g.projectID == projectID {
		return g.role, nil
	}
	if caller.IsAdmin() {
		if _, err := s.projects.FindByID(ctx, projectID); err != nil {
			return "", err
		}
		return domain.MemberAdmin, nil
	}
	return s.Check(ctx, projectID, caller.Email)
}

func permit(role domain.MemberRole, allowed []domain.MemberRole) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return domain.ErrForbidden
}

var (
	editorRoles = []domain.MemberRole{domain.MemberAdmin, domain.MemberMember}
	adminRoles  = []domain.MemberRole{domain.MemberAdmin}
)
