package permissions

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-admin/internal/associations"
	"github.com/odyssey-erp/odyssey-admin/internal/datatable"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// Service handles permission business logic. Every method checks the
// caller's capabilities before touching the store.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: httpx.NewValidator(), now: time.Now}
}

// Columns lists the fields the grid may search and order by.
var Columns = datatable.Columns[Permission]{
	"id":         func(p Permission) any { return p.ID },
	"name":       func(p Permission) any { return p.Name },
	"created_at": func(p Permission) any { return p.CreatedAt },
	"updated_at": func(p Permission) any { return p.UpdatedAt },
}

// Index returns the list page payload.
func (s *Service) Index(ctx context.Context, caps rbac.Capabilities) (IndexPage, error) {
	if err := rbac.Authorize(caps, rbac.ActionList); err != nil {
		return IndexPage{}, err
	}
	return IndexPage{Permissions: caps}, nil
}

// Datatable answers a grid draw request.
func (s *Service) Datatable(ctx context.Context, caps rbac.Capabilities, req datatable.Request) (datatable.Response[Permission], error) {
	if err := rbac.Authorize(caps, rbac.ActionList); err != nil {
		return datatable.Response[Permission]{}, err
	}
	var rows []Permission
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rows, err = tx.List(ctx)
		return err
	})
	if err != nil {
		return datatable.Response[Permission]{}, err
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

// Create validates and stores a permission, then links the given roles.
func (s *Service) Create(ctx context.Context, caps rbac.Capabilities, in Input) (Detail, error) {
	if err := rbac.Authorize(caps, rbac.ActionCreate); err != nil {
		return Detail{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := httpx.Validate(s.validate, in); err != nil {
		return Detail{}, err
	}

	var out Detail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.NameTaken(ctx, in.Name, 0)
		if err != nil {
			return err
		}
		if taken {
			return nameTaken()
		}
		perm, err := tx.Create(ctx, in.Name, s.now())
		if err != nil {
			return err
		}
		out, err = s.attach(ctx, tx, perm, in.Roles)
		return err
	})
	if err != nil {
		return Detail{}, err
	}
	return out, nil
}

// Show returns a permission with its roles and the role catalog.
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

// Update renames a permission and, when roles are given, replaces its role set.
func (s *Service) Update(ctx context.Context, caps rbac.Capabilities, id int64, in Input) (Detail, error) {
	if err := rbac.Authorize(caps, rbac.ActionUpdate); err != nil {
		return Detail{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := httpx.Validate(s.validate, in); err != nil {
		return Detail{}, err
	}

	var out Detail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.Get(ctx, id); err != nil {
			return err
		}
		taken, err := tx.NameTaken(ctx, in.Name, id)
		if err != nil {
			return err
		}
		if taken {
			return nameTaken()
		}
		perm, err := tx.Update(ctx, id, in.Name, s.now())
		if err != nil {
			return err
		}
		out, err = s.attach(ctx, tx, perm, in.Roles)
		return err
	})
	if err != nil {
		return Detail{}, err
	}
	return out, nil
}

// Delete removes one permission. Role links go with it.
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

// DeleteBulk removes every listed permission. Unknown ids are ignored.
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

func (s *Service) detailPage(ctx context.Context, caps rbac.Capabilities, id int64, kind string) (FormPage, error) {
	page := FormPage{Permissions: caps, Type: kind}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		perm, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		roles, err := tx.RoleIDs(ctx, id)
		if err != nil {
			return err
		}
		page.Data = &Detail{Permission: perm, Roles: roles}
		page.ReferenceList, err = tx.RoleCatalog(ctx)
		return err
	})
	if err != nil {
		return FormPage{}, err
	}
	return page, nil
}

func (s *Service) attach(ctx context.Context, tx TxRepository, perm Permission, roles *[]int64) (Detail, error) {
	if roles != nil {
		if err := tx.SyncRoles(ctx, perm.ID, *roles); err != nil {
			return Detail{}, err
		}
	}
	ids, err := tx.RoleIDs(ctx, perm.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Permission: perm, Roles: ids}, nil
}
