package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Roles assigned by the identity provider. Admins and superadmins bypass
// the per-appointment retrieval filter.
const (
	RoleUser       = "USER"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPERADMIN"
)

var ErrUserNotFound = errors.New("identity: user not found")

// Caller is the resolved identity of a chat participant.
type Caller struct {
	ID    string
	Email string
	Role  string
}

// Privileged reports whether the caller bypasses role-based retrieval filtering.
func (c Caller) Privileged() bool {
	return c.Role == RoleAdmin || c.Role == RoleSuperAdmin
}

// db is the pgx subset the service needs.
type db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service resolves caller ids against the shared users table.
type Service struct {
	db db
}

// NewService creates an identity service backed by a pgx pool.
func NewService(pool db) *Service {
	if pool == nil {
		panic("identity: pgx pool required")
	}
	return &Service{db: pool}
}

// Resolve looks up a caller's role and profile by user id.
func (s *Service) Resolve(ctx context.Context, userID string) (*Caller, error) {
	query := `SELECT id, email, role FROM users WHERE id = $1`
	var caller Caller
	if err := s.db.QueryRow(ctx, query, userID).Scan(&caller.ID, &caller.Email, &caller.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("identity: select failed: %w", err)
	}
	return &caller, nil
}
