package matrix

import (
	"github.com/odyssey-erp/odyssey-access/internal/rbac"
	"github.com/odyssey-erp/odyssey-access/internal/roles"
	"github.com/odyssey-erp/odyssey-access/internal/users"
)

// CellState is the rendering state of one matrix cell.
type CellState string

// Cell states.
const (
	CellGranted      CellState = "granted"
	CellRevoked      CellState = "revoked"
	CellUnconfigured CellState = "unconfigured"
)

// Cell is one (module, action) toggle.
type Cell struct {
	Action       rbac.Action `json:"action"`
	PermissionID int64       `json:"permission_id,omitempty"`
	Name         string      `json:"name"`
	State        CellState   `json:"state"`
	Disabled     bool        `json:"disabled"`
}

// Row holds the cells of one module.
type Row struct {
	Module string `json:"module"`
	Cells  []Cell `json:"cells"`
}

// Selection describes the selected principal.
type Selection struct {
	Kind   rbac.PrincipalKind `json:"kind"`
	Key    string             `json:"key"`
	RoleID int64              `json:"role_id"`
	UserID int64              `json:"user_id,omitempty"`
	Label  string             `json:"label"`
}

// Snapshot is the renderable view of an editor.
type Snapshot struct {
	Ready       bool         `json:"ready"`
	Warning     string       `json:"warning,omitempty"`
	Roles       []roles.Role `json:"roles"`
	Users       []users.User `json:"users"`
	Selection   *Selection   `json:"selection,omitempty"`
	HasOverride bool         `json:"has_override"`
	Loading     bool         `json:"loading"`
	Dirty       bool         `json:"dirty"`
	Blocked     bool         `json:"blocked"`
	LastError   string       `json:"last_error,omitempty"`
	Granted     []int64      `json:"granted"`
	Rows        []Row        `json:"rows"`
}

// Rows renders the module x action matrix of st. Cells are disabled while
// loading, when blocked, and when nothing is selected.
func Rows(st State) []Row {
	disabled := st.Loading || st.Blocked || st.Selected == nil
	rows := make([]Row, 0, len(st.Modules))
	for _, module := range st.Modules {
		row := Row{Module: module, Cells: make([]Cell, 0, len(rbac.Actions()))}
		for _, action := range rbac.Actions() {
			cell := Cell{Action: action, Name: rbac.PermissionName(module, action), Disabled: disabled}
			id, ok := st.Catalog.PermissionID(module, action)
			switch {
			case !ok:
				cell.State = CellUnconfigured
				cell.Disabled = true
			case st.Working.Has(id):
				cell.PermissionID = id
				cell.State = CellGranted
			default:
				cell.PermissionID = id
				cell.State = CellRevoked
			}
			row.Cells = append(row.Cells, cell)
		}
		rows = append(rows, row)
	}
	return rows
}

// Snapshot renders the current state. Users are the bucket of the selected
// role, or every user when nothing is selected.
func (e *Editor) Snapshot() Snapshot {
	st := e.State()
	snap := Snapshot{
		Ready:       st.Ready,
		Warning:     st.Warning,
		Roles:       nonNilRoles(st.Roles),
		Users:       nonNilUsers(st.Users),
		HasOverride: st.Override,
		Loading:     st.Loading,
		Dirty:       st.Dirty,
		Blocked:     st.Blocked,
		LastError:   st.LastError,
		Granted:     st.Working.IDs(),
		Rows:        Rows(st),
	}
	if st.Selected != nil {
		role := st.Selected.RoleRecord()
		sel := &Selection{Kind: st.Selected.Kind(), Key: st.Selected.Key(), RoleID: role.ID, Label: role.DisplayName}
		if up, ok := st.Selected.(rbac.UserPrincipal); ok {
			sel.UserID = up.User.ID
			sel.Label = up.User.DisplayName
		}
		snap.Selection = sel
		snap.Users = users.ForRoleLevel(st.Users, role.Level)
	}
	return snap
}

func nonNilRoles(list []roles.Role) []roles.Role {
	if list == nil {
		return []roles.Role{}
	}
	return list
}

func nonNilUsers(list []users.User) []users.User {
	if list == nil {
		return []users.User{}
	}
	return list
}
