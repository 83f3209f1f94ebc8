package rbac

import "sort"

// GrantSet is an unordered set of permission IDs.
type GrantSet map[int64]struct{}

// NewGrantSet builds a set from ids, dropping duplicates.
func NewGrantSet(ids ...int64) GrantSet {
	set := make(GrantSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s GrantSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Toggle removes id when present and adds it otherwise. It reports whether
// id is granted afterwards.
func (s GrantSet) Toggle(id int64) bool {
	if _, ok := s[id]; ok {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// Len returns the number of granted permissions.
func (s GrantSet) Len() int { return len(s) }

// IDs returns the members in ascending order.
func (s GrantSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns an independent copy.
func (s GrantSet) Clone() GrantSet {
	out := make(GrantSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same ids.
func (s GrantSet) Equal(other GrantSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}
