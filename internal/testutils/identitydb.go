// Package testutils provides test helpers shared between packages.
package testutils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/nscdshim/internal/users/types"
	"gopkg.in/yaml.v3"
)

// StaticDB is an in-memory identity database for tests. It satisfies the
// handlers Lookup interface.
type StaticDB struct {
	Users  []types.UserEntry  `yaml:"users"`
	Groups []types.GroupEntry `yaml:"groups"`

	// LookupErr, when set, makes every lookup fail with it.
	LookupErr error `yaml:"-"`
}

// NewStaticDBFromYAML loads a static database from the YAML file at path.
func NewStaticDBFromYAML(t *testing.T, path string) *StaticDB {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "Setup: could not read identity database fixture")

	var db StaticDB
	err = yaml.Unmarshal(data, &db)
	require.NoError(t, err, "Setup: could not parse identity database fixture")

	return &db
}

// UserByUID returns the user with the given uid, or nil if there is none.
func (db *StaticDB) UserByUID(uid uint32) (*types.UserEntry, error) {
	if db.LookupErr != nil {
		return nil, db.LookupErr
	}
	for _, u := range db.Users {
		if u.UID == uid {
			return &u, nil
		}
	}
	return nil, nil
}

// UserByName returns the user with the given name, or nil if there is none.
func (db *StaticDB) UserByName(name string) (*types.UserEntry, error) {
	if db.LookupErr != nil {
		return nil, db.LookupErr
	}
	for _, u := range db.Users {
		if u.Name == name {
			return &u, nil
		}
	}
	return nil, nil
}

// GroupByGID returns the group with the given gid, or nil if there is none.
func (db *StaticDB) GroupByGID(gid uint32) (*types.GroupEntry, error) {
	if db.LookupErr != nil {
		return nil, db.LookupErr
	}
	for _, g := range db.Groups {
		if g.GID == gid {
			return &g, nil
		}
	}
	return nil, nil
}

// GroupByName returns the group with the given name, or nil if there is none.
func (db *StaticDB) GroupByName(name string) (*types.GroupEntry, error) {
	if db.LookupErr != nil {
		return nil, db.LookupErr
	}
	for _, g := range db.Groups {
		if g.Name == name {
			return &g, nil
		}
	}
	return nil, nil
}
