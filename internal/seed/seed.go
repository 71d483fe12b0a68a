// Package seed installs the baseline access-control data: one permission per
// module action, a Super Admin role holding all of them and an admin account.
// Every step is idempotent so the command can be re-run against a live
// database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/users"
)

// SuperAdminRole is granted every permission on each run.
const SuperAdminRole = "Super Admin"

// Admin describes the account created when no user owns the email yet.
type Admin struct {
	Name     string
	Email    string
	Password string
}

// Result summarizes one run.
type Result struct {
	Permissions  int
	RoleID       int64
	AdminID      int64
	AdminCreated bool
}

// Store opens a unit of work over the seed tables.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}

// Tx is the set of writes the seeder needs.
type Tx interface {
	UpsertPermission(ctx context.Context, name string, at time.Time) (int64, error)
	UpsertRole(ctx context.Context, name string, at time.Time) (int64, error)
	SyncRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	UserIDByEmail(ctx context.Context, email string) (int64, bool, error)
	CreateUser(ctx context.Context, name, email, passwordHash string, at time.Time) (int64, error)
	GrantRole(ctx context.Context, userID, roleID int64) error
}

// Seeder runs the baseline seed.
type Seeder struct {
	store  Store
	logger *slog.Logger
	hash   func(string) (string, error)
	now    func() time.Time
}

// New builds a Seeder.
func New(store Store, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: store, logger: logger, hash: users.HashPassword, now: time.Now}
}

// Run seeds everything in a single transaction.
func (s *Seeder) Run(ctx context.Context, admin Admin) (Result, error) {
	admin.Email = strings.TrimSpace(admin.Email)
	if admin.Email == "" || admin.Password == "" {
		return Result{}, errors.New("seed: admin email and password are required")
	}
	if admin.Name == "" {
		admin.Name = SuperAdminRole
	}

	var res Result
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		at := s.now()
		names := rbac.AllPermissionNames()
		ids := make([]int64, 0, len(names))
		for _, name := range names {
			id, err := tx.UpsertPermission(ctx, name, at)
			if err != nil {
				return fmt.Errorf("seed: permission %q: %w", name, err)
			}
			ids = append(ids, id)
		}
		res.Permissions = len(ids)

		roleID, err := tx.UpsertRole(ctx, SuperAdminRole, at)
		if err != nil {
			return fmt.Errorf("seed: role: %w", err)
		}
		if err := tx.SyncRolePermissions(ctx, roleID, ids); err != nil {
			return fmt.Errorf("seed: role permissions: %w", err)
		}
		res.RoleID = roleID

		userID, found, err := tx.UserIDByEmail(ctx, admin.Email)
		if err != nil {
			return fmt.Errorf("seed: lookup admin: %w", err)
		}
		if !found {
			hashed, err := s.hash(admin.Password)
			if err != nil {
				return err
			}
			if userID, err = tx.CreateUser(ctx, admin.Name, admin.Email, hashed, at); err != nil {
				return fmt.Errorf("seed: create admin: %w", err)
			}
			res.AdminCreated = true
		}
		res.AdminID = userID
		return tx.GrantRole(ctx, userID, roleID)
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("seed complete",
		slog.Int("permissions", res.Permissions),
		slog.Int64("role_id", res.RoleID),
		slog.Int64("admin_id", res.AdminID),
		slog.Bool("admin_created", res.AdminCreated),
	)
	return res, nil
}
