package service

import (
	"context"
	"errors"
	"testing"

	"github.com/projexia/projexia/internal/core/domain"
)

func TestMembershipService_Check(t *testing.T) {
	f := newFixture()
	view := f.seedProject()
	svc := NewMembershipService(projectRepo{f.store}, memberRepo{f.store})
	ctx := context.Background()

	tests := []struct {
		email    string
		wantRole domain.MemberRole
		wantErr  error
	}{
		{"alice@example.com", domain.MemberAdmin, nil},
		{"BOB@example.com", domain.MemberMember, nil},
		{"carol@example.com", domain.MemberViewer, nil},
		{"dave@example.com", "", domain.ErrNotMember},
	}
	for _, tt := range tests {
		role, err := svc.Check(ctx, view.ID, tt.email)
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tt.email, tt.wantErr, err)
		}
		if role != tt.wantRole {
			t.Fatalf("%s: expected role %q, got %q", tt.email, tt.wantRole, role)
		}
	}

	if _, err := svc.Check(ctx, "missing", "alice@example.com"); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestMembershipService_Authorize(t *testing.T) {
	f := newFixture()
	view := f.seedProject()
	svc := NewMembershipService(projectRepo{f.store}, memberRepo{f.store})
	ctx := context.Background()

	if err := svc.Authorize(ctx, carol, view.ID); err != nil {
		t.Fatalf("viewer should pass read check: %v", err)
	}
	if err := svc.Authorize(ctx, carol, view.ID, editorRoles...); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for viewer, got %v", err)
	}
	if err := svc.Authorize(ctx, bob, view.ID, editorRoles...); err != nil {
		t.Fatalf("member should pass editor check: %v", err)
	}
	if err := svc.Authorize(ctx, bob, view.ID, adminRoles...); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for member, got %v", err)
	}
	if err := svc.Authorize(ctx, root, view.ID, adminRoles...); err != nil {
		t.Fatalf("global admin should bypass membership: %v", err)
	}
	if err := svc.Authorize(ctx, root, "missing"); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound for global admin, got %v", err)
	}
}

type countingMemberRepo struct {
	memberRepo
	lists int
}

func (r *countingMemberRepo) ListByProjects(ctx context.Context, projectIDs []string) ([]*domain.ProjectMember, error) {
	r.lists++
	return r.memberRepo.ListByProjects(ctx, projectIDs)
}

func TestMembershipService_GrantIsReusedWithinRequest(t *testing.T) {
	f := newFixture()
	view := f.seedProject()
	members := &countingMemberRepo{memberRepo: memberRepo{f.store}}
	svc := NewMembershipService(projectRepo{f.store}, members)

	ctx, err := svc.Grant(context.Background(), bob, view.ID, editorRoles...)
	if err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if members.lists != 1 {
		t.Fatalf("expected one member lookup, got %d", members.lists)
	}

	if err := svc.Authorize(ctx, bob, view.ID); err != nil {
		t.Fatalf("Authorize after Grant: %v", err)
	}
	if err := svc.Authorize(ctx, bob, view.ID, adminRoles...); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("granted role must still be checked, got %v", err)
	}
	if members.lists != 1 {
		t.Fatalf("Authorize reloaded members: %d lookups", members.lists)
	}

	// A grant never leaks to another caller or project.
	if err := svc.Authorize(ctx, carol, view.ID, editorRoles...); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for carol, got %v", err)
	}
	if err := svc.Authorize(ctx, bob, "missing"); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}

	if _, err := svc.Grant(context.Background(), carol, view.ID, adminRoles...); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected Grant to reject viewer, got %v", err)
	}
}
