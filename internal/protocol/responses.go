package protocol

import "encoding/binary"

// PwResponseHeader is the fixed-size prefix of a passwd response. Field order
// and widths match glibc's pw_response_header exactly; the client decodes it
// as a packed C struct. The zero value is the not-found header.
type PwResponseHeader struct {
	Version   int32
	Found     int32
	NameLen   int32
	PasswdLen int32
	UID       uint32
	GID       uint32
	GecosLen  int32
	DirLen    int32
	ShellLen  int32
}

// PwResponseHeaderSize is the encoded size of PwResponseHeader.
const PwResponseHeaderSize = 36

// AppendBinary appends the header to b in the client's native-endian layout.
func (h PwResponseHeader) AppendBinary(b []byte) []byte {
	b = appendInt32(b, h.Version)
	b = appendInt32(b, h.Found)
	b = appendInt32(b, h.NameLen)
	b = appendInt32(b, h.PasswdLen)
	b = binary.NativeEndian.AppendUint32(b, h.UID)
	b = binary.NativeEndian.AppendUint32(b, h.GID)
	b = appendInt32(b, h.GecosLen)
	b = appendInt32(b, h.DirLen)
	b = appendInt32(b, h.ShellLen)
	return b
}

// GrResponseHeader is the fixed-size prefix of a group response, matching
// glibc's gr_response_header. When found, it is followed by one 4-byte length
// per member before the payload. The zero value is the not-found header.
type GrResponseHeader struct {
	Version   int32
	Found     int32
	NameLen   int32
	PasswdLen int32
	GID       uint32
	MemCnt    int32
}

// GrResponseHeaderSize is the encoded size of GrResponseHeader.
const GrResponseHeaderSize = 24

// AppendBinary appends the header to b in the client's native-endian layout.
func (h GrResponseHeader) AppendBinary(b []byte) []byte {
	b = appendInt32(b, h.Version)
	b = appendInt32(b, h.Found)
	b = appendInt32(b, h.NameLen)
	b = appendInt32(b, h.PasswdLen)
	b = binary.NativeEndian.AppendUint32(b, h.GID)
	b = appendInt32(b, h.MemCnt)
	return b
}

// AppendInt32 appends v to b in native byte order, as the client's C int.
func AppendInt32(b []byte, v int32) []byte {
	return appendInt32(b, v)
}

func appendInt32(b []byte, v int32) []byte {
	return binary.NativeEndian.AppendUint32(b, uint32(v))
}
