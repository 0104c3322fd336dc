// Package protocol implements the glibc nscd wire protocol: the request
// format sent by the libc client and the fixed-layout response headers its
// decoder expects. All integers are native-endian with 4-byte C int widths,
// matching the client ABI.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Version is the nscd protocol version (NSCD_VERSION in glibc).
const Version = 2

// MaxKeyLen bounds the request key length, mirroring glibc's MAXKEYLEN.
const MaxKeyLen = 1024

// requestHeaderSize is the size of the fixed request header: version, type
// and key length, 4 bytes each.
const requestHeaderSize = 12

// RequestType is the request kind tag. The numeric values are fixed by the
// glibc client ABI and must not be reordered.
type RequestType int32

// Request types, in ABI order. Only the four passwd and group lookups are
// served; the remaining kinds get an empty response (see the handlers
// package).
const (
	GetPwByName RequestType = iota
	GetPwByUID
	GetGrByName
	GetGrByGID
	GetHostByName
	GetHostByNamev6
	GetHostByAddr
	GetHostByAddrv6
	Shutdown
	GetStat
	Invalidate
	GetFdPw
	GetFdGr
	GetFdHst
	GetAI
	InitGroups
	GetServByName
	GetServByPort
	GetFdServ
	GetNetGrEnt
	InNetGr
	GetFdNetGr
	LastReq
)

var requestTypeNames = map[RequestType]string{
	GetPwByName:     "GETPWBYNAME",
	GetPwByUID:      "GETPWBYUID",
	GetGrByName:     "GETGRBYNAME",
	GetGrByGID:      "GETGRBYGID",
	GetHostByName:   "GETHOSTBYNAME",
	GetHostByNamev6: "GETHOSTBYNAMEv6",
	GetHostByAddr:   "GETHOSTBYADDR",
	GetHostByAddrv6: "GETHOSTBYADDRv6",
	Shutdown:        "SHUTDOWN",
	GetStat:         "GETSTAT",
	Invalidate:      "INVALIDATE",
	GetFdPw:         "GETFDPW",
	GetFdGr:         "GETFDGR",
	GetFdHst:        "GETFDHST",
	GetAI:           "GETAI",
	InitGroups:      "INITGROUPS",
	GetServByName:   "GETSERVBYNAME",
	GetServByPort:   "GETSERVBYPORT",
	GetFdServ:       "GETFDSERV",
	GetNetGrEnt:     "GETNETGRENT",
	InNetGr:         "INNETGR",
	GetFdNetGr:      "GETFDNETGR",
	LastReq:         "LASTREQ",
}

// String returns the glibc name of the request type.
func (t RequestType) String() string {
	if name, ok := requestTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(t))
}

// Request is one decoded client request.
type Request struct {
	Type RequestType

	// Key is the raw lookup key as sent by the client, including its
	// terminating null byte. It is untrusted data: validation happens when
	// the request is dispatched.
	Key []byte
}

// ParseRequest reads one request from r: the fixed 12-byte header followed by
// the key. It rejects unsupported protocol versions, request types outside
// the enumeration and key lengths outside 1..MaxKeyLen.
func ParseRequest(r io.Reader) (*Request, error) {
	hdr := make([]byte, requestHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("could not read request header: %w", err)
	}

	version := int32(binary.NativeEndian.Uint32(hdr[0:4]))
	if version != Version {
		return nil, fmt.Errorf("unsupported protocol version %d", version)
	}

	reqType := RequestType(binary.NativeEndian.Uint32(hdr[4:8]))
	if reqType < GetPwByName || reqType > LastReq {
		return nil, fmt.Errorf("unknown request type %d", int32(reqType))
	}

	keyLen := int32(binary.NativeEndian.Uint32(hdr[8:12]))
	if keyLen < 1 || keyLen > MaxKeyLen {
		return nil, fmt.Errorf("invalid key length %d", keyLen)
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("could not read request key: %w", err)
	}

	return &Request{Type: reqType, Key: key}, nil
}
