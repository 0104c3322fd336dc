//go:build !cgo

package localentries

// Without cgo we cannot reach the libc NSS lookup functions directly, so we
// shell out to getent(1), which resolves through every source configured in
// nsswitch.conf. This keeps CGO_ENABLED=0 builds working at the price of one
// short-lived process per lookup.

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/nscdshim/internal/users/types"
)

// getentKeyNotFound is the getent(1) exit status for a missing key.
const getentKeyNotFound = 2

func getent(database, key string) (string, error) {
	out, err := exec.Command("getent", database, key).Output()
	if err == nil {
		return strings.TrimSuffix(string(out), "\n"), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == getentKeyNotFound {
		return "", nil
	}
	return "", fmt.Errorf("getent %s %q: %w", database, key, err)
}

func parsePasswdLine(line string) (*types.UserEntry, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 7 {
		return nil, fmt.Errorf("malformed passwd entry %q", line)
	}
	uid, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("malformed uid in %q: %w", line, err)
	}
	gid, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("malformed gid in %q: %w", line, err)
	}

	return &types.UserEntry{
		Name:   fields[0],
		Passwd: fields[1],
		UID:    uint32(uid),
		GID:    uint32(gid),
		Gecos:  fields[4],
		Dir:    fields[5],
		Shell:  fields[6],
	}, nil
}

func parseGroupLine(line string) (*types.GroupEntry, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 4 {
		return nil, fmt.Errorf("malformed group entry %q", line)
	}
	gid, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("malformed gid in %q: %w", line, err)
	}

	var members []string
	if fields[3] != "" {
		members = strings.Split(fields[3], ",")
	}

	return &types.GroupEntry{
		Name:    fields[0],
		Passwd:  fields[1],
		GID:     uint32(gid),
		Members: members,
	}, nil
}

func getUser(key string) (user *types.UserEntry, err error) {
	defer decorate.OnError(&err, "user lookup %q", key)

	line, err := getent("passwd", key)
	if err != nil || line == "" {
		return nil, err
	}
	return parsePasswdLine(line)
}

func getGroup(key string) (group *types.GroupEntry, err error) {
	defer decorate.OnError(&err, "group lookup %q", key)

	line, err := getent("group", key)
	if err != nil || line == "" {
		return nil, err
	}
	return parseGroupLine(line)
}

func getUserByUID(uid uint32) (*types.UserEntry, error) {
	return getUser(strconv.FormatUint(uint64(uid), 10))
}

func getUserByName(name string) (*types.UserEntry, error) {
	return getUser(name)
}

func getGroupByGID(gid uint32) (*types.GroupEntry, error) {
	return getGroup(strconv.FormatUint(uint64(gid), 10))
}

func getGroupByName(name string) (*types.GroupEntry, error) {
	return getGroup(name)
}
