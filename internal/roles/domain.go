package roles

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/associations"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// ErrNotFound indicates the role does not exist.
var ErrNotFound = fmt.Errorf("role %w", httpx.ErrNotFound)

// Role groups permissions and is assigned to users.
type Role struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Detail is a role with its permission ids.
type Detail struct {
	Role
	Permissions []int64 `json:"permissions"`
}

// Input is the create and update payload. A nil Permissions leaves the set
// untouched on update; an empty one clears it.
type Input struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Permissions *[]int64 `json:"permissions" validate:"omitempty,dive,gt=0"`
}

// IndexPage lists every role.
type IndexPage struct {
	Permissions rbac.Capabilities `json:"permissions"`
	Data        []Role            `json:"data"`
}

// FormPage backs the create, show and edit pages.
type FormPage struct {
	Permissions   rbac.Capabilities     `json:"permissions"`
	Type          string                `json:"type"`
	Data          *Detail               `json:"data,omitempty"`
	ReferenceList []associations.Record `json:"reference_list"`
}

func nameTaken() error {
	return httpx.FieldError("name", "Role name has been used")
}
