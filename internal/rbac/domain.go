package rbac

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Action is one of the verbs every catalog module is provisioned with.
type Action string

// Supported actions.
const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions returns the closed action set in matrix column order.
func Actions() []Action {
	return []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}
}

// Valid reports whether the action belongs to the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// ParseAction normalises raw input into an Action.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	if !action.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
	return action, nil
}

// Permission represents an atomic capability stored in the catalog.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Resource    string    `json:"resource"`
	Action      Action    `json:"action"`
	Scope       string    `json:"scope"`
	CreatedAt   time.Time `json:"created_at"`
}

// PermissionSpec describes a catalog entry to create.
type PermissionSpec struct {
	Name        string
	DisplayName string
	Resource    string
	Action      Action
	Scope       string
}

// PermissionName composes the canonical "{resource}.{action}" name.
func PermissionName(resource string, action Action) string {
	return NormalizeModule(resource) + "." + string(action)
}

// NormalizeModule trims and lower-cases a module identifier.
func NormalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}

// NewPermissionSpec builds the spec for one (module, action) pair.
func NewPermissionSpec(module string, action Action, scope string) PermissionSpec {
	module = NormalizeModule(module)
	return PermissionSpec{
		Name:        PermissionName(module, action),
		DisplayName: displayName(module, action),
		Resource:    module,
		Action:      action,
		Scope:       scope,
	}
}

func displayName(module string, action Action) string {
	// Casers are stateful and must not be shared between goroutines.
	titleCaser := cases.Title(language.English)
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(module))
	for i, w := range words {
		if isAcronym(w) {
			words[i] = strings.ToUpper(w)
			continue
		}
		words[i] = titleCaser.String(w)
	}
	return titleCaser.String(string(action)) + " " + strings.Join(words, " ")
}

// known module acronyms rendered upper-case in display names.
var acronyms = map[string]struct{}{
	"hrms": {},
	"lms":  {},
	"crm":  {},
	"erp":  {},
}

func isAcronym(word string) bool {
	_, ok := acronyms[word]
	return ok
}

// GrantRecord is a grant set as read back from the grant store.
type GrantRecord struct {
	PermissionIDs []int64
	// Exists is false when no set was ever saved for the principal.
	Exists    bool
	UpdatedAt time.Time
}
