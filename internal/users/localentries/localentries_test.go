package localentries_test

import (
	"os"
	"os/user"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/nscdshim/internal/users/localentries"
)

func TestUserByUIDReturnsCurrentUser(t *testing.T) {
	t.Parallel()

	uid := uint32(os.Getuid())
	u, err := localentries.DB{}.UserByUID(uid)
	require.NoError(t, err, "UserByUID should not fail on the current user")
	require.NotNil(t, u, "UserByUID should find the current user")

	require.Equal(t, uid, u.UID, "UserByUID should return the requested uid")
	require.NotEmpty(t, u.Name, "current user should have a name")
	require.NotEmpty(t, u.Dir, "current user should have a home directory")
}

func TestUserByNameMatchesUserByUID(t *testing.T) {
	t.Parallel()

	current, err := user.Current()
	require.NoError(t, err, "Setup: could not get current user")

	byName, err := localentries.DB{}.UserByName(current.Username)
	require.NoError(t, err, "UserByName should not fail on the current user")
	require.NotNil(t, byName, "UserByName should find the current user")

	byUID, err := localentries.DB{}.UserByUID(byName.UID)
	require.NoError(t, err, "UserByUID should not fail on the current user")
	require.Equal(t, byName, byUID, "both lookups should return the same record")
}

func TestUserLookupNotFound(t *testing.T) {
	t.Parallel()

	u, err := localentries.DB{}.UserByName("nscdshim-does-not-exist")
	require.NoError(t, err, "an absent user is not a lookup error")
	require.Nil(t, u, "no record should be returned for an absent user")

	u, err = localentries.DB{}.UserByUID(4294967290)
	require.NoError(t, err, "an absent uid is not a lookup error")
	require.Nil(t, u, "no record should be returned for an absent uid")
}

func TestGroupByGIDReturnsCurrentGroup(t *testing.T) {
	t.Parallel()

	gid := uint32(os.Getgid())
	g, err := localentries.DB{}.GroupByGID(gid)
	require.NoError(t, err, "GroupByGID should not fail on the current group")
	require.NotNil(t, g, "GroupByGID should find the current group")

	require.Equal(t, gid, g.GID, "GroupByGID should return the requested gid")
	require.NotEmpty(t, g.Name, "current group should have a name")
}

func TestGroupByNameMatchesGroupByGID(t *testing.T) {
	t.Parallel()

	byGID, err := localentries.DB{}.GroupByGID(uint32(os.Getgid()))
	require.NoError(t, err, "Setup: could not look up the current group")
	require.NotNil(t, byGID, "Setup: current group should exist")

	byName, err := localentries.DB{}.GroupByName(byGID.Name)
	require.NoError(t, err, "GroupByName should not fail on the current group")
	require.Equal(t, byGID, byName, "both lookups should return the same record")
}

func TestGroupLookupNotFound(t *testing.T) {
	t.Parallel()

	g, err := localentries.DB{}.GroupByName("nscdshim-does-not-exist")
	require.NoError(t, err, "an absent group is not a lookup error")
	require.Nil(t, g, "no record should be returned for an absent group")

	g, err = localentries.DB{}.GroupByGID(4294967290)
	require.NoError(t, err, "an absent gid is not a lookup error")
	require.Nil(t, g, "no record should be returned for an absent gid")
}
