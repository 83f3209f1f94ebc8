package rbac

import "sort"

// Catalog is an immutable, indexed snapshot of the permission registry.
type Catalog struct {
	permissions []Permission
	byName      map[string]Permission
	byID        map[int64]Permission
}

// NewCatalog indexes the given permissions by name and ID.
func NewCatalog(perms []Permission) *Catalog {
	c := &Catalog{
		permissions: make([]Permission, 0, len(perms)),
		byName:      make(map[string]Permission, len(perms)),
		byID:        make(map[int64]Permission, len(perms)),
	}
	for _, p := range perms {
		if _, dup := c.byName[p.Name]; dup {
			continue
		}
		c.permissions = append(c.permissions, p)
		c.byName[p.Name] = p
		c.byID[p.ID] = p
	}
	sort.Slice(c.permissions, func(i, j int) bool { return c.permissions[i].Name < c.permissions[j].Name })
	return c
}

// All returns the permissions ordered by name.
func (c *Catalog) All() []Permission {
	if c == nil {
		return nil
	}
	out := make([]Permission, len(c.permissions))
	copy(out, c.permissions)
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.permissions)
}

// ByName looks a permission up by canonical name.
func (c *Catalog) ByName(name string) (Permission, bool) {
	if c == nil {
		return Permission{}, false
	}
	p, ok := c.byName[name]
	return p, ok
}

// ByID looks a permission up by ID.
func (c *Catalog) ByID(id int64) (Permission, bool) {
	if c == nil {
		return Permission{}, false
	}
	p, ok := c.byID[id]
	return p, ok
}

// Has reports whether id is a known permission.
func (c *Catalog) Has(id int64) bool {
	_, ok := c.ByID(id)
	return ok
}

// PermissionID resolves the ID of the (module, action) cell. The second return
// is false when the cell is unconfigured.
func (c *Catalog) PermissionID(module string, action Action) (int64, bool) {
	p, ok := c.ByName(PermissionName(module, action))
	if !ok {
		return 0, false
	}
	return p.ID, true
}

// Missing lists the canonical names of required entries absent from the catalog.
func (c *Catalog) Missing(modules []string) []string {
	var missing []string
	for _, spec := range RequiredSpecs(modules, "") {
		if _, ok := c.ByName(spec.Name); !ok {
			missing = append(missing, spec.Name)
		}
	}
	return missing
}

// Unknown returns the ids of set that are not in the catalog, ascending.
func (c *Catalog) Unknown(set GrantSet) []int64 {
	var unknown []int64
	for _, id := range set.IDs() {
		if !c.Has(id) {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// RequiredSpecs expands modules into the full module x action matrix, deduped
// by canonical name and in module order.
func RequiredSpecs(modules []string, scope string) []PermissionSpec {
	seen := make(map[string]struct{}, len(modules)*4)
	specs := make([]PermissionSpec, 0, len(modules)*4)
	for _, module := range NormalizeModules(modules) {
		for _, action := range Actions() {
			spec := NewPermissionSpec(module, action, scope)
			if _, ok := seen[spec.Name]; ok {
				continue
			}
			seen[spec.Name] = struct{}{}
			specs = append(specs, spec)
		}
	}
	return specs
}

// NormalizeModules trims, lower-cases and dedupes module identifiers while
// keeping their first-seen order. Blank entries are dropped.
func NormalizeModules(modules []string) []string {
	seen := make(map[string]struct{}, len(modules))
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		m = NormalizeModule(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
