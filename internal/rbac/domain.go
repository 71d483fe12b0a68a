package rbac

// Module is a resource family guarded by permissions.
type Module string

// Modules managed by the back office.
const (
	ModuleUser       Module = "User"
	ModuleRole       Module = "Role"
	ModulePermission Module = "Permission"
)

// Action is an operation on a module.
type Action string

// Actions available on every module.
const (
	ActionList   Action = "List"
	ActionView   Action = "View"
	ActionCreate Action = "Create"
	ActionUpdate Action = "Update"
	ActionDelete Action = "Delete"
)

// Modules lists every module.
func Modules() []Module {
	return []Module{ModuleUser, ModuleRole, ModulePermission}
}

// Actions lists every action in display order.
func Actions() []Action {
	return []Action{ActionList, ActionView, ActionCreate, ActionUpdate, ActionDelete}
}

// PermissionName returns the stored permission name for a module action,
// e.g. "Role Deletes".
func PermissionName(m Module, a Action) string {
	return string(m) + " " + string(a) + "s"
}

// AllPermissionNames returns the name of every module action.
func AllPermissionNames() []string {
	names := make([]string, 0, len(Modules())*len(Actions()))
	for _, m := range Modules() {
		for _, a := range Actions() {
			names = append(names, PermissionName(m, a))
		}
	}
	return names
}

// Capabilities is the resolved action set of one actor on one module.
type Capabilities struct {
	List   bool `json:"list"`
	View   bool `json:"view"`
	Create bool `json:"create"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// Allows reports whether the action is granted.
func (c Capabilities) Allows(a Action) bool {
	switch a {
	case ActionList:
		return c.List
	case ActionView:
		return c.View
	case ActionCreate:
		return c.Create
	case ActionUpdate:
		return c.Update
	case ActionDelete:
		return c.Delete
	}
	return false
}

// Actor is an authenticated user with its effective permission names.
type Actor struct {
	UserID  int64
	granted map[string]struct{}
}

// NewActor builds an Actor from permission names.
func NewActor(userID int64, permissions []string) Actor {
	granted := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		granted[p] = struct{}{}
	}
	return Actor{UserID: userID, granted: granted}
}

// Can reports whether the actor holds the permission for a module action.
func (a Actor) Can(m Module, act Action) bool {
	_, ok := a.granted[PermissionName(m, act)]
	return ok
}

// Capabilities resolves every action of m for the actor.
func (a Actor) Capabilities(m Module) Capabilities {
	return Capabilities{
		List:   a.Can(m, ActionList),
		View:   a.Can(m, ActionView),
		Create: a.Can(m, ActionCreate),
		Update: a.Can(m, ActionUpdate),
		Delete: a.Can(m, ActionDelete),
	}
}
