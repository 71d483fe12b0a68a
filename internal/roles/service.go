package roles

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-admin/internal/associations"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// Service handles role business logic.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: httpx.NewValidator(), now: time.Now}
}

// Index returns every role with the caller's capabilities.
func (s *Service) Index(ctx context.Context, caps rbac.Capabilities) (IndexPage, error) {
	if err := rbac.Authorize(caps, rbac.ActionList); err != nil {
		return IndexPage{}, err
	}
	page := IndexPage{Permissions: caps}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		page.Data, err = tx.List(ctx)
		return err
	})
	if err != nil {
		return IndexPage{}, err
	}
	if page.Data == nil {
		page.Data = []Role{}
	}
	return page, nil
}

// CreateForm returns the permission catalog for the create form.
func (s *Service) CreateForm(ctx context.Context, caps rbac.Capabilities) (FormPage, error) {
	if err := rbac.Authorize(caps, rbac.ActionCreate); err != nil {
		return FormPage{}, err
	}
	page := FormPage{Permissions: caps, Type: "create"}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		page.ReferenceList, err = tx.PermissionCatalog(ctx)
		return err
	})
	if err != nil {
		return FormPage{}, err
	}
	return page, nil
}

// Create stores a role and grants it the given permissions in one unit of work.
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
		if err := ensureNameFree(ctx, tx, in.Name, 0); err != nil {
			return err
		}
		role, err := tx.Create(ctx, in.Name, s.now())
		if err != nil {
			return err
		}
		out, err = grant(ctx, tx, role, in.Permissions)
		return err
	})
	if err != nil {
		return Detail{}, err
	}
	return out, nil
}

// Show returns a role with its permission ids and the permission catalog.
func (s *Service) Show(ctx context.Context, caps rbac.Capabilities, id int64) (FormPage, error) {
	if err := rbac.Authorize(caps, rbac.ActionView); err != nil {
		return FormPage{}, err
	}
	return s.detailPage(ctx, caps, id, "show")
}

// Edit is Show gated by the update capability.
func (s *Service) Edit(ctx context.Context, caps rbac.Capabilities, id int64) (FormPage, error) {
	if err := rbac.Authorize(caps, rbac.ActionUpdate); err != nil {
		return FormPage{}, err
	}
	return s.detailPage(ctx, caps, id, "edit")
}

// Update renames a role; when Permissions is set its permission set is
// replaced to match exactly.
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
		if err := ensureNameFree(ctx, tx, in.Name, id); err != nil {
			return err
		}
		role, err := tx.Update(ctx, id, in.Name, s.now())
		if err != nil {
			return err
		}
		out, err = grant(ctx, tx, role, in.Permissions)
		return err
	})
	if err != nil {
		return Detail{}, err
	}
	return out, nil
}

// Delete removes a role together with its permission and user links.
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

// DeleteBulk removes the listed roles; ids that do not exist are skipped.
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
		role, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		perms, err := tx.PermissionIDs(ctx, id)
		if err != nil {
			return err
		}
		page.Data = &Detail{Role: role, Permissions: perms}
		page.ReferenceList, err = tx.PermissionCatalog(ctx)
		return err
	})
	if err != nil {
		return FormPage{}, err
	}
	return page, nil
}

func ensureNameFree(ctx context.Context, tx TxRepository, name string, excludeID int64) error {
	taken, err := tx.NameTaken(ctx, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return nameTaken()
	}
	return nil
}

func grant(ctx context.Context, tx TxRepository, role Role, permissions *[]int64) (Detail, error) {
	if permissions != nil {
		if err := tx.SyncPermissions(ctx, role.ID, *permissions); err != nil {
			return Detail{}, err
		}
	}
	ids, err := tx.PermissionIDs(ctx, role.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Role: role, Permissions: ids}, nil
}
