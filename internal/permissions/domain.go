// Package permissions manages the permission catalog.
package permissions

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/associations"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// ErrNotFound indicates the permission does not exist.
var ErrNotFound = fmt.Errorf("permission %w", httpx.ErrNotFound)

// Permission is a named capability granted to roles.
type Permission struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Detail is a permission with the ids of the roles holding it.
type Detail struct {
	Permission
	Roles []int64 `json:"roles"`
}

// Input is the create and update payload. A nil Roles leaves the role set
// untouched; an empty one clears it. Permissions do not hold permissions, so
// any permissions key is rejected instead of being dropped.
type Input struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Roles       *[]int64 `json:"roles" validate:"omitempty,dive,gt=0"`
	Permissions *[]int64 `json:"permissions" validate:"isdefault"`
}

// IndexPage is returned by the list page.
type IndexPage struct {
	Permissions rbac.Capabilities `json:"permissions"`
}

// FormPage backs the create, show and edit pages.
type FormPage struct {
	Permissions   rbac.Capabilities     `json:"permissions"`
	Type          string                `json:"type"`
	Data          *Detail               `json:"data,omitempty"`
	ReferenceList []associations.Record `json:"reference_list"`
}

func nameTaken() error {
	return httpx.FieldError("name", "Permission name has been used")
}
