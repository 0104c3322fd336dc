// Package types provides the user and group record types shared between the
// identity database lookups and the protocol encoders.
package types

// UserEntry is a passwd record resolved from the system identity database.
type UserEntry struct {
	Name   string
	Passwd string
	UID    uint32
	GID    uint32
	Gecos  string
	Dir    string
	Shell  string
}

// GroupEntry is a group record resolved from the system identity database.
// Members keeps the order the database returned.
type GroupEntry struct {
	Name    string
	Passwd  string
	GID     uint32
	Members []string
}
