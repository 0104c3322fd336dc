package localentries

/*
#include <stdlib.h>
#include <pwd.h>
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

// isNotFoundErrno reports whether errno is one of the values libc may leave
// behind when a lookup completes without a match, per getpwnam(3).
func isNotFoundErrno(errno syscall.Errno) bool {
	switch errno {
	case 0, syscall.ENOENT, syscall.ESRCH, syscall.EBADF, syscall.EPERM:
		return true
	}
	return false
}

// lookupUser drives one reentrant passwd lookup, growing the string buffer
// until the record fits.
func lookupUser(getpw func(pwd *C.struct_passwd, buf *C.char, buflen C.size_t, result **C.struct_passwd) C.int) (*types.UserEntry, error) {
	var pwd C.struct_passwd
	var result *C.struct_passwd
	buf := make([]C.char, 1024)

	pinner := runtime.Pinner{}
	defer pinner.Unpin()
	pinner.Pin(&pwd)

	for {
		pinner.Pin(&buf[0])
		ret := getpw(&pwd, &buf[0], C.size_t(len(buf)), &result)
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

		return &types.UserEntry{
			Name:   C.GoString(result.pw_name),
			Passwd: C.GoString(result.pw_passwd),
			UID:    uint32(result.pw_uid),
			GID:    uint32(result.pw_gid),
			Gecos:  C.GoString(result.pw_gecos),
			Dir:    C.GoString(result.pw_dir),
			Shell:  C.GoString(result.pw_shell),
		}, nil
	}
}

func getUserByUID(uid uint32) (user *types.UserEntry, err error) {
	defer decorate.OnError(&err, "getpwuid_r %d", uid)

	return lookupUser(func(pwd *C.struct_passwd, buf *C.char, buflen C.size_t, result **C.struct_passwd) C.int {
		return C.getpwuid_r(C.uid_t(uid), pwd, buf, buflen, result)
	})
}

func getUserByName(name string) (user *types.UserEntry, err error) {
	defer decorate.OnError(&err, "getpwnam_r %q", name)

	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	return lookupUser(func(pwd *C.struct_passwd, buf *C.char, buflen C.size_t, result **C.struct_passwd) C.int {
		return C.getpwnam_r(cName, pwd, buf, buflen, result)
	})
}
