// Package auth resolves the project role of a calling user.
package auth

import (
	"context"
	"errors"
	"fmt"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/store"
)

// Service provides access helpers backed by the unit of work.
type Service struct{}

// RequireMember returns the caller's member record in the project.
func (Service) RequireMember(ctx context.Context, tx store.MemberStore, projectID, userID string) (domain.Member, error) {
	if userID == "" {
		return domain.Member{}, apperr.New(apperr.CodeNotProjectMember, "actor is required")
	}
	m, err := tx.GetMemberByUser(ctx, projectID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return m, apperr.WithMetadata(apperr.CodeNotProjectMember, fmt.Sprintf("user %s is not a member of project %s", userID, projectID),
			map[string]string{"user_id": userID, "project_id": projectID})
	}
	return m, err
}

// RequireOwner loads the project and checks that userID owns it.
func (Service) RequireOwner(ctx context.Context, tx store.ProjectStore, projectID, userID string) (domain.Project, error) {
	p, err := tx.GetProject(ctx, projectID)
	if err != nil {
		return p, err
	}
	if p.OwnerID != userID {
		return p, apperr.WithMetadata(apperr.CodeNotProjectOwner, fmt.Sprintf("user %s does not own project %s", userID, projectID),
			map[string]string{"user_id": userID, "project_id": projectID})
	}
	return p, nil
}

// RequireActive rejects writes to a closed project.
func RequireActive(p domain.Project) error {
	if p.Status == domain.ProjectClosed {
		return apperr.WithMetadata(apperr.CodeProjectClosed, fmt.Sprintf("project %s is closed", p.ID), map[string]string{"project_id": p.ID})
	}
	return nil
}
