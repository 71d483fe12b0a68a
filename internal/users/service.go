package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-admin/internal/associations"
	"github.com/odyssey-erp/odyssey-admin/internal/datatable"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// Service handles user business logic.
type Service struct {
	repo     Repository
	validate *validator.Validate
	hash     func(password string) (string, error)
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: httpx.NewValidator(), hash: HashPassword, now: time.Now}
}

// HashPassword returns the bcrypt hash stored for a password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(hashed), nil
}

// Columns lists the fields the grid may search and order by.
var Columns = datatable.Columns[User]{
	"id":                func(u User) any { return u.ID },
	"name":              func(u User) any { return u.Name },
	"email":             func(u User) any { return u.Email },
	"email_verified_at": func(u User) any { return u.EmailVerifiedAt },
	"created_at":        func(u User) any { return u.CreatedAt },
	"updated_at":        func(u User) any { return u.UpdatedAt },
}

// Index returns the list page payload.
func (s *Service) Index(ctx context.Context, caps rbac.Capabilities) (IndexPage, error) {
	if err := rbac.Authorize(caps, rbac.ActionList); err != nil {
		return IndexPage{}, err
	}
	return IndexPage{Permissions: caps}, nil
}

// Datatable answers a grid draw request.
func (s *Service) Datatable(ctx context.Context, caps rbac.Capabilities, req datatable.Request) (datatable.Response[User], error) {
	if err := rbac.Authorize(caps, rbac.ActionList); err != nil {
		return datatable.Response[User]{}, err
	}
	var rows []User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rows, err = tx.List(ctx)
		return err
	})
	if err != nil {
		return datatable.Response[User]{}, err
	}
	return datatable.Apply(req, rows, Columns), nil
}

// CreateForm returns the create page payload with the role catalog.
func (s *Service) CreateForm(ctx context.Context, caps rbac.Capabilities) (FormPage, error) {
	if err := rbac.Authorize(caps, rbac.ActionCreate); err != nil {
		return FormPage{}, err
	}
	page := FormPage{Permissions: caps, Type: "create"}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		page.ReferenceList, err = tx.RoleCatalog(ctx)
		return err
	})
	if err != nil {
		return FormPage{}, err
	}
	return page, nil
}

// Create stores a user with a hashed password and assigns the given roles.
func (s *Service) Create(ctx context.Context, caps rbac.Capabilities, in CreateInput) (Detail, error) {
	if err := rbac.Authorize(caps, rbac.ActionCreate); err != nil {
		return Detail{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := httpx.Validate(s.validate, in); err != nil {
		return Detail{}, err
	}
	hashed, err := s.hash(in.Password)
	if err != nil {
		return Detail{}, err
	}

	var out Detail
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.ensureUnique(ctx, tx, in.Name, in.Email, 0); err != nil {
			return err
		}
		at := s.now()
		user, err := tx.Create(ctx, User{Name: in.Name, Email: in.Email, PasswordHash: hashed, CreatedAt: at, UpdatedAt: at})
		if err != nil {
			return err
		}
		out, err = s.assign(ctx, tx, user, &in.Roles)
		return err
	})
	if err != nil {
		return Detail{}, err
	}
	return out, nil
}

// Show returns a user with its roles and the role catalog.
func (s *Service) Show(ctx context.Context, caps rbac.Capabilities, id int64) (FormPage, error) {
	if err := rbac.Authorize(caps, rbac.ActionView); err != nil {
		return FormPage{}, err
	}
	return s.detailPage(ctx, caps, id, "show")
}

// Edit returns the same payload as Show for the edit form.
func (s *Service) Edit(ctx context.Context, caps rbac.Capabilities, id int64) (FormPage, error) {
	if err := rbac.Authorize(caps, rbac.ActionUpdate); err != nil {
		return FormPage{}, err
	}
	return s.detailPage(ctx, caps, id, "edit")
}

// Update changes name and email, rehashes the password when one is given and
// replaces the role set when roles are given.
func (s *Service) Update(ctx context.Context, caps rbac.Capabilities, id int64, in UpdateInput) (Detail, error) {
	if err := rbac.Authorize(caps, rbac.ActionUpdate); err != nil {
		return Detail{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Password != nil && *in.Password == "" {
		in.Password = nil
	}
	if err := httpx.Validate(s.validate, in); err != nil {
		return Detail{}, err
	}
	changes := Changes{Name: in.Name, Email: in.Email}
	if in.Password != nil {
		hashed, err := s.hash(*in.Password)
		if err != nil {
			return Detail{}, err
		}
		changes.PasswordHash = &hashed
	}

	var out Detail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.Get(ctx, id); err != nil {
			return err
		}
		if err := s.ensureUnique(ctx, tx, in.Name, in.Email, id); err != nil {
			return err
		}
		user, err := tx.Update(ctx, id, changes, s.now())
		if err != nil {
			return err
		}
		out, err = s.assign(ctx, tx, user, in.Roles)
		return err
	})
	if err != nil {
		return Detail{}, err
	}
	return out, nil
}

// Delete removes one user. Role assignments and sessions go with it.
func (s *Service) Delete(ctx context.Context, caps rbac.Capabilities, id int64) error {
	if err := rbac.Authorize(caps, rbac.ActionDelete); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.Delete(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteBulk removes every listed user. Unknown ids are ignored.
func (s *Service) DeleteBulk(ctx context.Context, caps rbac.Capabilities, in httpx.IDList) error {
	if err := rbac.Authorize(caps, rbac.ActionDelete); err != nil {
		return err
	}
	if err := httpx.Validate(s.validate, in); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.DeleteMany(ctx, associations.Normalize(in.IDs))
		return err
	})
}

// ensureUnique reports name and email collisions together.
func (s *Service) ensureUnique(ctx context.Context, tx TxRepository, name, email string, excludeID int64) error {
	verr := &httpx.ValidationError{}
	taken, err := tx.NameTaken(ctx, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		verr.Add("name", msgNameTaken)
	}
	taken, err = tx.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if taken {
		verr.Add("email", msgEmailTaken)
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func (s *Service) detailPage(ctx context.Context, caps rbac.Capabilities, id int64, kind string) (FormPage, error) {
	page := FormPage{Permissions: caps, Type: kind}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		user, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		roles, err := tx.RoleIDs(ctx, id)
		if err != nil {
			return err
		}
		page.Data = &Detail{User: user, Roles: roles}
		page.ReferenceList, err = tx.RoleCatalog(ctx)
		return err
	})
	if err != nil {
		return FormPage{}, err
	}
	return page, nil
}

func (s *Service) assign(ctx context.Context, tx TxRepository, user User, roles *[]int64) (Detail, error) {
	if roles != nil {
		if err := tx.SyncRoles(ctx, user.ID, *roles); err != nil {
			return Detail{}, err
		}
	}
	ids, err := tx.RoleIDs(ctx, user.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{User: user, Roles: ids}, nil
}
