package users

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/associations"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// ErrNotFound indicates the user does not exist.
var ErrNotFound = fmt.Errorf("user %w", httpx.ErrNotFound)

// User is a back-office account. The password hash is never serialized.
type User struct {
	ID              int64      `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Email           string     `json:"email" db:"email"`
	PasswordHash    string     `json:"-" db:"password"`
	EmailVerifiedAt *time.Time `json:"email_verified_at" db:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Detail is a user with its role ids.
type Detail struct {
	User
	Roles []int64 `json:"roles"`
}

// CreateInput is the payload for new users.
type CreateInput struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,min=8,max=255"`
	Roles    []int64 `json:"roles" validate:"required,min=1,dive,gt=0"`
}

// UpdateInput is the payload for existing users. Password and Roles are
// only applied when present.
type UpdateInput struct {
	Name     string   `json:"name" validate:"required,max=255"`
	Email    string   `json:"email" validate:"required,email,max=255"`
	Password *string  `json:"password" validate:"omitempty,min=8,max=255"`
	Roles    *[]int64 `json:"roles" validate:"omitempty,min=1,dive,gt=0"`
}

// Changes are the column values written by an update. A nil PasswordHash
// keeps the stored hash.
type Changes struct {
	Name         string
	Email        string
	PasswordHash *string
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

const (
	constraintEmail = "users_email_key"

	msgNameTaken  = "User name has been used"
	msgEmailTaken = "Email has been used"
)

func nameTaken() *httpx.ValidationError  { return httpx.FieldError("name", msgNameTaken) }
func emailTaken() *httpx.ValidationError { return httpx.FieldError("email", msgEmailTaken) }
