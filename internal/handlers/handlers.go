// Package handlers routes decoded nscd requests to the system identity
// database and serializes the results in the byte-exact layout the libc
// client decoder expects.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/ubuntu/nscdshim/internal/log"
	"github.com/ubuntu/nscdshim/internal/protocol"
	"github.com/ubuntu/nscdshim/internal/users/types"
)

// Lookup resolves records against the system identity database. A nil record
// with a nil error means the lookup completed without finding a match, which
// is a valid result, not an error.
type Lookup interface {
	UserByUID(uid uint32) (*types.UserEntry, error)
	UserByName(name string) (*types.UserEntry, error)
	GroupByGID(gid uint32) (*types.GroupEntry, error)
	GroupByName(name string) (*types.GroupEntry, error)
}

var (
	// ErrMalformedKey is returned when a request key is not null-terminated,
	// is not valid text where text is required, or does not parse as the
	// required numeric type.
	ErrMalformedKey = errors.New("malformed request key")

	// ErrFieldTooLarge is returned when a field's encoded length does not fit
	// the protocol's 32-bit signed length field.
	ErrFieldTooLarge = errors.New("field length exceeds protocol limit")

	// ErrInvalidFieldContent is returned when a field contains an embedded
	// null byte and so cannot be encoded as a C string.
	ErrInvalidFieldContent = errors.New("field contains an embedded null byte")
)

// groupPasswd is the placeholder written in place of the group password: the
// identity database on this platform does not expose a real one.
const groupPasswd = "x"

// Handle performs the lookup selected by req and returns the serialized
// response. Request types other than the four passwd and group lookups yield
// an empty buffer and no error: a client probing for support of one of them
// must see "no payload", not a protocol-level failure.
func Handle(ctx context.Context, db Lookup, req *protocol.Request) ([]byte, error) {
	log.Debugf(ctx, "Handling %v request with key %q", req.Type, req.Key)

	switch req.Type {
	case protocol.GetPwByUID:
		uid, err := parseIDKey(req.Key)
		if err != nil {
			return nil, err
		}
		user, err := db.UserByUID(uid)
		if err != nil {
			return nil, fmt.Errorf("user lookup by uid %d: %w", uid, err)
		}
		log.Debugf(ctx, "Got user: %+v", user)
		return serializeUser(user)

	case protocol.GetPwByName:
		name, err := parseNameKey(req.Key)
		if err != nil {
			return nil, err
		}
		user, err := db.UserByName(name)
		if err != nil {
			return nil, fmt.Errorf("user lookup by name %q: %w", name, err)
		}
		log.Debugf(ctx, "Got user: %+v", user)
		return serializeUser(user)

	case protocol.GetGrByGID:
		gid, err := parseIDKey(req.Key)
		if err != nil {
			return nil, err
		}
		group, err := db.GroupByGID(gid)
		if err != nil {
			return nil, fmt.Errorf("group lookup by gid %d: %w", gid, err)
		}
		log.Debugf(ctx, "Got group: %+v", group)
		return serializeGroup(group)

	case protocol.GetGrByName:
		name, err := parseNameKey(req.Key)
		if err != nil {
			return nil, err
		}
		group, err := db.GroupByName(name)
		if err != nil {
			return nil, fmt.Errorf("group lookup by name %q: %w", name, err)
		}
		log.Debugf(ctx, "Got group: %+v", group)
		return serializeGroup(group)

	case protocol.GetHostByName, protocol.GetHostByNamev6, protocol.GetHostByAddr,
		protocol.GetHostByAddrv6, protocol.Shutdown, protocol.GetStat,
		protocol.Invalidate, protocol.GetFdPw, protocol.GetFdGr, protocol.GetFdHst,
		protocol.GetAI, protocol.InitGroups, protocol.GetServByName,
		protocol.GetServByPort, protocol.GetFdServ, protocol.GetNetGrEnt,
		protocol.InNetGr, protocol.GetFdNetGr, protocol.LastReq:
		// Databases we don't serve. The empty response tells the client to
		// fall back to its other sources.
		return []byte{}, nil

	default:
		// ParseRequest only produces types within the enumeration, so this is
		// unreachable unless a caller builds a request by hand.
		return nil, fmt.Errorf("unknown request type %d", int32(req.Type))
	}
}

// cstring strips the single terminating null byte from key.
func cstring(key []byte) (string, error) {
	if len(key) == 0 || key[len(key)-1] != 0 {
		return "", fmt.Errorf("%w: not null-terminated", ErrMalformedKey)
	}
	s := key[:len(key)-1]
	if bytes.IndexByte(s, 0) >= 0 {
		return "", fmt.Errorf("%w: embedded null byte", ErrMalformedKey)
	}
	return string(s), nil
}

// parseIDKey interprets key as the null-terminated ASCII decimal numeral of a
// 32-bit unsigned identifier.
func parseIDKey(key []byte) (uint32, error) {
	s, err := cstring(key)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a valid id", ErrMalformedKey, s)
	}
	return uint32(id), nil
}

// parseNameKey interprets key as a null-terminated UTF-8 name.
func parseNameKey(key []byte) (string, error) {
	s, err := cstring(key)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: key is not valid UTF-8", ErrMalformedKey)
	}
	return s, nil
}

// checkedLen converts a field length to the protocol's 32-bit signed width.
func checkedLen(n int64) (int32, error) {
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d does not fit a 32-bit length field", ErrFieldTooLarge, n)
	}
	return int32(n), nil
}

// cBytes returns the bytes of s followed by its C string terminator.
func cBytes(s string) ([]byte, error) {
	if _, err := checkedLen(int64(len(s)) + 1); err != nil {
		return nil, err
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFieldContent, s)
		}
	}
	b := make([]byte, 0, len(s)+1)
	b = append(b, s...)
	return append(b, 0), nil
}

// serializeUser produces the passwd response for user, or the all-zero
// not-found header when user is nil. The not-found header carries version 0,
// not protocol.Version: the client decoder relies on exactly that.
func serializeUser(user *types.UserEntry) ([]byte, error) {
	if user == nil {
		return protocol.PwResponseHeader{}.AppendBinary(nil), nil
	}

	name, err := cBytes(user.Name)
	if err != nil {
		return nil, err
	}
	passwd, err := cBytes(user.Passwd)
	if err != nil {
		return nil, err
	}
	gecos, err := cBytes(user.Gecos)
	if err != nil {
		return nil, err
	}
	dir, err := cBytes(user.Dir)
	if err != nil {
		return nil, err
	}
	shell, err := cBytes(user.Shell)
	if err != nil {
		return nil, err
	}

	header := protocol.PwResponseHeader{
		Version:   protocol.Version,
		Found:     1,
		NameLen:   int32(len(name)),
		PasswdLen: int32(len(passwd)),
		UID:       user.UID,
		GID:       user.GID,
		GecosLen:  int32(len(gecos)),
		DirLen:    int32(len(dir)),
		ShellLen:  int32(len(shell)),
	}

	buf := make([]byte, 0, protocol.PwResponseHeaderSize+len(name)+len(passwd)+len(gecos)+len(dir)+len(shell))
	buf = header.AppendBinary(buf)
	buf = append(buf, name...)
	buf = append(buf, passwd...)
	buf = append(buf, gecos...)
	buf = append(buf, dir...)
	buf = append(buf, shell...)
	return buf, nil
}

// serializeGroup produces the group response for group, or the all-zero
// not-found header when group is nil. The password field is always the fixed
// placeholder; members keep the exact order the database returned.
func serializeGroup(group *types.GroupEntry) ([]byte, error) {
	if group == nil {
		return protocol.GrResponseHeader{}.AppendBinary(nil), nil
	}

	name, err := cBytes(group.Name)
	if err != nil {
		return nil, err
	}
	passwd, err := cBytes(groupPasswd)
	if err != nil {
		return nil, err
	}

	memCnt, err := checkedLen(int64(len(group.Members)))
	if err != nil {
		return nil, err
	}
	members := make([][]byte, 0, len(group.Members))
	payloadLen := len(name) + len(passwd)
	for _, member := range group.Members {
		m, err := cBytes(member)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
		payloadLen += len(m)
	}

	header := protocol.GrResponseHeader{
		Version:   protocol.Version,
		Found:     1,
		NameLen:   int32(len(name)),
		PasswdLen: int32(len(passwd)),
		GID:       group.GID,
		MemCnt:    memCnt,
	}

	buf := make([]byte, 0, protocol.GrResponseHeaderSize+4*len(members)+payloadLen)
	buf = header.AppendBinary(buf)
	for _, m := range members {
		buf = protocol.AppendInt32(buf, int32(len(m)))
	}
	buf = append(buf, name...)
	buf = append(buf, passwd...)
	for _, m := range members {
		buf = append(buf, m...)
	}
	return buf, nil
}
