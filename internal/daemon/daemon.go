// Package daemon handles the nscd protocol socket server with systemd support.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/activation"
	systemddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/ubuntu/decorate"
	"github.com/ubuntu/nscdshim/internal/handlers"
	"github.com/ubuntu/nscdshim/internal/log"
	"github.com/ubuntu/nscdshim/internal/protocol"
	"golang.org/x/sys/unix"
)

// Daemon is the nscd protocol server with systemd support.
type Daemon struct {
	db  handlers.Lookup
	lis net.Listener

	systemdSdNotifier systemdSdNotifier

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	wg sync.WaitGroup
}

type options struct {
	socketPath string

	// private members that we export for tests.
	systemdActivationListener func() ([]net.Listener, error)
	systemdSdNotifier         func(unsetEnvironment bool, state string) (bool, error)
}

type systemdSdNotifier func(unsetEnvironment bool, state string) (bool, error)

// Option is the function signature used to tweak the daemon creation.
type Option func(*options)

// WithSocketPath uses a manual socket path instead of socket activation.
func WithSocketPath(p string) func(o *options) {
	return func(o *options) {
		o.socketPath = p
	}
}

// New returns a new, initialized daemon server, which handles systemd activation.
// If systemd activation is used, it will override any socket passed here.
func New(ctx context.Context, db handlers.Lookup, args ...Option) (d *Daemon, err error) {
	defer decorate.OnError(&err, "can't create daemon")

	log.Debug(ctx, "Building new daemon")

	opts := options{
		socketPath: "",

		systemdActivationListener: activation.Listeners,
		systemdSdNotifier:         systemddaemon.SdNotify,
	}
	for _, f := range args {
		f(&opts)
	}

	var lis net.Listener

	if opts.socketPath != "" {
		log.Debugf(ctx, "Listening on %s", opts.socketPath)

		// Remove any stale socket left behind by a previous run.
		if err := os.Remove(opts.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("could not remove stale socket: %v", err)
		}

		lis, err = net.Listen("unix", opts.socketPath)
		if err != nil {
			return nil, err
		}

		//nolint:gosec // The libc client of every process needs to reach the socket.
		if err = os.Chmod(opts.socketPath, 0666); err != nil {
			return nil, fmt.Errorf("could not change socket permission: %v", err)
		}
	} else {
		log.Debug(ctx, "Use socket activation")

		listeners, err := opts.systemdActivationListener()
		if err != nil {
			return nil, err
		}

		if len(listeners) != 1 {
			return nil, fmt.Errorf("unexpected number of systemd socket activation (%d != 1)", len(listeners))
		}
		lis = listeners[0]
	}

	// Ensure selected socket exists.
	if _, err := os.Stat(lis.Addr().String()); err != nil {
		return nil, fmt.Errorf("%s can't be accessed: %v", lis.Addr().String(), err)
	}

	return &Daemon{
		db:  db,
		lis: lis,

		conns: make(map[net.Conn]struct{}),

		systemdSdNotifier: opts.systemdSdNotifier,
	}, nil
}

// Serve accepts client connections on the socket and answers their requests.
// This call is blocking until the daemon is quit.
func (d *Daemon) Serve(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "error while serving")

	log.Debugf(ctx, "Starting to serve requests on %s", d.lis.Addr())

	// Signal to systemd that we are ready.
	if sent, err := d.systemdSdNotifier(false, "READY=1"); err != nil {
		return fmt.Errorf("couldn't send ready notification to systemd: %v", err)
	} else if sent {
		log.Debug(ctx, "Ready state sent to systemd")
	}

	log.Infof(ctx, "Serving nscd requests on %v", d.lis.Addr())
	for {
		conn, err := d.lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// The daemon was quit.
				return nil
			}
			return err
		}

		d.registerConn(conn)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer d.unregisterConn(conn)
			d.handleConn(ctx, conn)
		}()
	}
}

// Quit gracefully quits listening loop and stops answering requests.
// It drops any existing connection if force is true.
func (d *Daemon) Quit(ctx context.Context, force bool) {
	log.Infof(ctx, "Stopping daemon requested for socket %s.", d.lis.Addr())
	_ = d.lis.Close()

	if force {
		d.mu.Lock()
		for conn := range d.conns {
			_ = conn.Close()
		}
		d.mu.Unlock()
	} else {
		log.Info(ctx, "Wait for active requests to close.")
	}

	d.wg.Wait()
	log.Debug(ctx, "All connections have now ended.")
}

func (d *Daemon) registerConn(conn net.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[conn] = struct{}{}
}

func (d *Daemon) unregisterConn(conn net.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, conn)
}

// handleConn answers one request: the libc client sends a single request per
// connection and reads the response right away. Invalid requests and failed
// lookups drop the connection without a response, as the protocol has no
// error frame.
func (d *Daemon) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logConnPeer(ctx, conn)

	req, err := protocol.ParseRequest(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			log.Warningf(ctx, "Dropping connection with invalid request: %v", err)
		}
		return
	}

	resp, err := handlers.Handle(ctx, d.db, req)
	if err != nil {
		log.Warningf(ctx, "Could not handle %v request: %v", req.Type, err)
		return
	}
	if len(resp) == 0 {
		return
	}

	if _, err := conn.Write(resp); err != nil {
		log.Warningf(ctx, "Could not write %v response: %v", req.Type, err)
	}
}

// logConnPeer logs the connecting process credentials at debug level.
func logConnPeer(ctx context.Context, conn net.Conn) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return
	}

	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || credErr != nil {
		return
	}

	log.Debugf(ctx, "Client connected: pid %d, uid %d, gid %d", cred.Pid, cred.Uid, cred.Gid)
}
