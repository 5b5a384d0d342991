package handler

import (
	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

// --- Request → Service input ---

func toMemberInput(r memberRequest) ports.MemberInput {
	return ports.MemberInput{
		Name:  r.Name,
		Email: r.Email,
		Role:  domain.MemberRole(r.Role),
	}
}

func toCreateProjectInput(r createProjectRequest, idempotencyKey string) ports.CreateProjectInput {
	members := make([]ports.MemberInput, 0, len(r.Members))
	for _, m := range r.Members {
		members = append(members, toMemberInput(m))
	}
	return ports.CreateProjectInput{
		Name:           r.Name,
		Description:    r.Description,
		Members:        members,
		IdempotencyKey: idempotencyKey,
	}
}

func toProjectPatch(r updateProjectRequest) domain.ProjectPatch {
	return domain.ProjectPatch{Name: r.Name, Description: r.Description}
}
