// Package localentries resolves user and group records against the system
// identity database through the libc NSS lookup functions.
//
// A nil record with a nil error means the database has no matching entry,
// which callers must treat as a successful absent result.
package localentries

import "github.com/ubuntu/nscdshim/internal/users/types"

// DB resolves records against the local identity database. It satisfies the
// handlers Lookup interface and is safe for concurrent use: the underlying
// reentrant libc calls keep no shared state between lookups.
type DB struct{}

// UserByUID returns the passwd record for uid, or nil if there is none.
func (DB) UserByUID(uid uint32) (*types.UserEntry, error) {
	return getUserByUID(uid)
}

// UserByName returns the passwd record for name, or nil if there is none.
func (DB) UserByName(name string) (*types.UserEntry, error) {
	return getUserByName(name)
}

// GroupByGID returns the group record for gid, or nil if there is none.
func (DB) GroupByGID(gid uint32) (*types.GroupEntry, error) {
	return getGroupByGID(gid)
}

// GroupByName returns the group record for name, or nil if there is none.
func (DB) GroupByName(name string) (*types.GroupEntry, error) {
	return getGroupByName(name)
}
