package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

// AdminService composes identity and ledger operations for staff.
type AdminService struct {
	users UserRepository
}

func NewAdminService(users UserRepository) *AdminService {
	return &AdminService{users: users}
}

func (s *AdminService) ListUsers(ctx context.Context, search string) ([]types.User, error) {
	return s.users.List(ctx, strings.TrimSpace(search))
}

// DeleteUser removes the user and all of its entitlements, access requests
// and notes as one transaction. Staff accounts and the caller's own
// account cannot be deleted.
func (s *AdminService) DeleteUser(ctx context.Context, actor Session, userID int64) (int, error) {
	if actor.UserID == userID {
		return 0, ErrForbidden
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, notFound("user", userID)
		}
		return 0, err
	}
	if user.IsStaff {
		return 0, ErrForbidden
	}

	removed, err := s.users.DeleteWithDependents(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, notFound("user", userID)
		}
		return 0, err
	}

	zerolog.Ctx(ctx).Info().
		Int64("user_id", userID).
		Str("username", user.Username).
		Int64("actor_id", actor.UserID).
		Int("entitlements_removed", removed).
		Msg("user deleted")
	return removed, nil
}
