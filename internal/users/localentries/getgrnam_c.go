//nolint:dupl // The group lookup mirrors the passwd one but against another C struct.
package localentries

/*
#include <stdlib.h>
#include <grp.h>
*/
import "C"

import (
	"errors"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/nscdshim/internal/users/types"
)

// lookupGroup drives one reentrant group lookup, growing the string buffer
// until the record fits. Group records can be large: every member name lands
// in the same buffer.
func lookupGroup(getgr func(grp *C.struct_group, buf *C.char, buflen C.size_t, result **C.struct_group) C.int) (*types.GroupEntry, error) {
	var grp C.struct_group
	var result *C.struct_group
	buf := make([]C.char, 1024)

	pinner := runtime.Pinner{}
	defer pinner.Unpin()
	pinner.Pin(&grp)

	for {
		pinner.Pin(&buf[0])
		ret := getgr(&grp, &buf[0], C.size_t(len(buf)), &result)
		errno := syscall.Errno(ret)

		if errors.Is(errno, syscall.ERANGE) {
			buf = make([]C.char, len(buf)*2)
			continue
		}
		if result == nil {
			if isNotFoundErrno(errno) {
				return nil, nil
			}
			return nil, errno
		}
		if !errors.Is(errno, syscall.Errno(0)) {
			return nil, errno
		}

		return &types.GroupEntry{
			Name:    C.GoString(result.gr_name),
			Passwd:  C.GoString(result.gr_passwd),
			GID:     uint32(result.gr_gid),
			Members: groupMembers(result),
		}, nil
	}
}

// groupMembers copies the NULL-terminated gr_mem array, preserving its order.
func groupMembers(grp *C.struct_group) []string {
	if grp.gr_mem == nil {
		return nil
	}

	var members []string
	for mem := grp.gr_mem; *mem != nil; mem = (**C.char)(unsafe.Pointer(uintptr(unsafe.Pointer(mem)) + unsafe.Sizeof(*mem))) {
		members = append(members, C.GoString(*mem))
	}
	return members
}

func getGroupByGID(gid uint32) (group *types.GroupEntry, err error) {
	defer decorate.OnError(&err, "getgrgid_r %d", gid)

	return lookupGroup(func(grp *C.struct_group, buf *C.char, buflen C.size_t, result **C.struct_group) C.int {
		return C.getgrgid_r(C.gid_t(gid), grp, buf, buflen, result)
	})
}

func getGroupByName(name string) (group *types.GroupEntry, err error) {
	defer decorate.OnError(&err, "getgrnam_r %q", name)

	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	return lookupGroup(func(grp *C.struct_group, buf *C.char, buflen C.size_t, result **C.struct_group) C.int {
		return C.getgrnam_r(cName, grp, buf, buflen, result)
	})
}
