// Package consts defines the constants used by the project.
package consts

import "github.com/ubuntu/nscdshim/internal/log"

var (
	// Version is the version of the executable.
	Version = "Dev"
)

const (
	// DefaultLogLevel is the default logging level selected without any option.
	DefaultLogLevel = log.WarnLevel

	// DefaultSocket is the socket path the glibc nscd client connects to.
	// The path is fixed in the libc, not configurable on the client side.
	DefaultSocket = "/var/run/nscd/socket"

	// DefaultConfigDir is the directory searched for the configuration file.
	DefaultConfigDir = "/etc/nscdshim"
)
