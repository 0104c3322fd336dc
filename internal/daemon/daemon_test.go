package daemon_test

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/nscdshim/internal/daemon"
	"github.com/ubuntu/nscdshim/internal/protocol"
	"github.com/ubuntu/nscdshim/internal/testutils"
)

func TestNew(t *testing.T) {
	t.Parallel()

	type socketType int
	const (
		systemdActivationListener socketType = iota
		manualSocket
		systemdActivationListenerAndManualSocket
		systemdActivationListenerMultipleSockets
		systemdActivationListenerFails
		manualSocketParentDirectoryDoesNotExists
	)

	testCases := map[string]struct {
		socketType socketType

		wantSelectedSocket string
		wantErr            bool
	}{
		"With_socket_activation":                               {wantSelectedSocket: "systemd.sock1"},
		"Socket_provided_manually_is_created":                  {socketType: manualSocket, wantSelectedSocket: "manual.sock"},
		"Socket_provided_manually_wins_over_socket_activation": {socketType: systemdActivationListenerAndManualSocket, wantSelectedSocket: "manual.sock"},

		"Error_when_systemd_provides_multiple_sockets":             {socketType: systemdActivationListenerMultipleSockets, wantErr: true},
		"Error_when_systemd_activation_fails":                      {socketType: systemdActivationListenerFails, wantErr: true},
		"Error_when_manually_provided_socket_path_does_not_exists": {socketType: manualSocketParentDirectoryDoesNotExists, wantErr: true},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			tc := tc
			t.Parallel()

			// Prepare sockets for activation setups.
			var sockets []net.Listener
			socketDir := t.TempDir()
			for _, socket := range []string{"systemd.sock1", "systemd.sock2"} {
				l, err := net.Listen("unix", filepath.Join(socketDir, socket))
				require.NoErrorf(t, err, "Setup: couldn't create unix socket: %v", err)
				defer l.Close()
				sockets = append(sockets, l)
			}
			manualSocketPath := filepath.Join(t.TempDir(), "manual.sock")

			var args []daemon.Option
			switch tc.socketType {
			case systemdActivationListener:
				args = append(args, daemon.WithSystemdActivationListener(
					func() ([]net.Listener, error) {
						return []net.Listener{sockets[0]}, nil
					}))
			case manualSocket:
				args = append(args, daemon.WithSocketPath(manualSocketPath))
			case systemdActivationListenerAndManualSocket:
				args = append(args, daemon.WithSystemdActivationListener(
					func() ([]net.Listener, error) {
						return []net.Listener{sockets[0]}, nil
					}),
					daemon.WithSocketPath(manualSocketPath),
				)
			case systemdActivationListenerMultipleSockets:
				args = append(args, daemon.WithSystemdActivationListener(
					func() ([]net.Listener, error) {
						return []net.Listener{sockets[0], sockets[1]}, nil
					}))
			case systemdActivationListenerFails:
				args = append(args, daemon.WithSystemdActivationListener(
					func() ([]net.Listener, error) {
						return nil, io.ErrUnexpectedEOF
					}))
			case manualSocketParentDirectoryDoesNotExists:
				args = append(args, daemon.WithSocketPath(filepath.Join(t.TempDir(), "does", "not", "exist", "daemon.sock")))
			}

			d, err := daemon.New(context.Background(), &testutils.StaticDB{}, args...)
			if tc.wantErr {
				require.Error(t, err, "New should fail for this socket setup")
				return
			}
			require.NoError(t, err, "New should create the daemon")
			require.Equal(t, tc.wantSelectedSocket, filepath.Base(d.SelectedSocketAddr()), "the expected socket should be selected")
		})
	}
}

// startDaemon serves db on a socket in a temporary directory and returns the
// socket path. The daemon is gracefully quit at test cleanup.
func startDaemon(t *testing.T, db *testutils.StaticDB) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "nscdshim.sock")
	d, err := daemon.New(context.Background(), db,
		daemon.WithSocketPath(socketPath),
		daemon.WithSystemdSdNotifier(func(bool, string) (bool, error) { return true, nil }),
	)
	require.NoError(t, err, "Setup: could not create daemon")

	serveDone := make(chan error, 1)
	go func() { serveDone <- d.Serve(context.Background()) }()
	t.Cleanup(func() {
		d.Quit(context.Background(), false)
		select {
		case err := <-serveDone:
			require.NoError(t, err, "Serve should return without error after Quit")
		case <-time.After(5 * time.Second):
			t.Fatal("Serve did not return after Quit")
		}
	})

	return socketPath
}

func rawRequest(version, reqType int32, key []byte) []byte {
	var b []byte
	b = binary.NativeEndian.AppendUint32(b, uint32(version))
	b = binary.NativeEndian.AppendUint32(b, uint32(reqType))
	b = binary.NativeEndian.AppendUint32(b, uint32(len(key)))
	return append(b, key...)
}

func appendCString(b []byte, s string) []byte {
	b = append(b, s...)
	return append(b, 0)
}

func TestServeAnswersRequests(t *testing.T) {
	t.Parallel()

	db := testutils.NewStaticDBFromYAML(t, filepath.Join("testdata", "identities.yaml"))
	require.NotEmpty(t, db.Users, "Setup: fixture should contain users")
	require.NotEmpty(t, db.Groups, "Setup: fixture should contain groups")
	user := db.Users[0]
	group := db.Groups[0]

	wantUser := protocol.PwResponseHeader{
		Version:   protocol.Version,
		Found:     1,
		NameLen:   int32(len(user.Name)) + 1,
		PasswdLen: int32(len(user.Passwd)) + 1,
		UID:       user.UID,
		GID:       user.GID,
		GecosLen:  int32(len(user.Gecos)) + 1,
		DirLen:    int32(len(user.Dir)) + 1,
		ShellLen:  int32(len(user.Shell)) + 1,
	}.AppendBinary(nil)
	for _, field := range []string{user.Name, user.Passwd, user.Gecos, user.Dir, user.Shell} {
		wantUser = appendCString(wantUser, field)
	}

	wantGroup := protocol.GrResponseHeader{
		Version:   protocol.Version,
		Found:     1,
		NameLen:   int32(len(group.Name)) + 1,
		PasswdLen: 2,
		GID:       group.GID,
		MemCnt:    int32(len(group.Members)),
	}.AppendBinary(nil)
	for _, member := range group.Members {
		wantGroup = protocol.AppendInt32(wantGroup, int32(len(member))+1)
	}
	wantGroup = appendCString(wantGroup, group.Name)
	wantGroup = appendCString(wantGroup, "x")
	for _, member := range group.Members {
		wantGroup = appendCString(wantGroup, member)
	}

	tests := map[string]struct {
		raw []byte

		want []byte
	}{
		"Answer_user_by_name":  {raw: rawRequest(protocol.Version, int32(protocol.GetPwByName), appendCString(nil, user.Name)), want: wantUser},
		"Answer_group_by_name": {raw: rawRequest(protocol.Version, int32(protocol.GetGrByName), appendCString(nil, group.Name)), want: wantGroup},

		"Answer_not_found_user": {
			raw:  rawRequest(protocol.Version, int32(protocol.GetPwByName), appendCString(nil, "does-not-exist")),
			want: make([]byte, protocol.PwResponseHeaderSize),
		},

		"No_response_for_unserved_request_type": {raw: rawRequest(protocol.Version, int32(protocol.GetStat), appendCString(nil, "stats"))},
		"No_response_for_invalid_version":       {raw: rawRequest(1, int32(protocol.GetPwByName), appendCString(nil, user.Name))},
		"No_response_for_malformed_key":         {raw: rawRequest(protocol.Version, int32(protocol.GetPwByUID), []byte("not-a-number\x00"))},
	}

	socketPath := startDaemon(t, db)

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tc := tc
			conn, err := net.Dial("unix", socketPath)
			require.NoError(t, err, "could not connect to the daemon")
			defer conn.Close()

			_, err = conn.Write(tc.raw)
			require.NoError(t, err, "could not send the request")

			got, err := io.ReadAll(conn)
			require.NoError(t, err, "could not read the response")
			if len(tc.want) == 0 {
				require.Empty(t, got, "the daemon should close the connection without a response")
				return
			}
			require.Equal(t, tc.want, got, "the daemon should answer with the serialized record")
		})
	}
}
