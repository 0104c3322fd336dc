package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// DaemonConfig is the configuration of the daemon for tests.
type DaemonConfig = daemonConfig

// NewForTests creates a new App with a temporary configuration, ready to run
// with the given arguments.
func NewForTests(t *testing.T, conf *DaemonConfig, args ...string) *App {
	t.Helper()

	confPath := GenerateTestConfig(t, conf)
	argsWithConf := []string{"--config", confPath}
	argsWithConf = append(argsWithConf, args...)

	a := New()
	a.rootCmd.SetArgs(argsWithConf)
	return a
}

// GenerateTestConfig writes a configuration file for tests, filling socket
// defaults pointing to a short temporary directory.
func GenerateTestConfig(t *testing.T, origConf *DaemonConfig) string {
	t.Helper()

	var conf DaemonConfig
	if origConf != nil {
		conf = *origConf
	}

	if conf.Paths.Socket == "" {
		// We need our own short temporary directory: socket paths are
		// limited to 108 characters.
		shortTmp, err := os.MkdirTemp("", "nscdshim-tests")
		require.NoError(t, err, "Setup: could not create temporary directory")
		t.Cleanup(func() { _ = os.RemoveAll(shortTmp) })
		conf.Paths.Socket = filepath.Join(shortTmp, "nscdshim.sock")
	}

	content := fmt.Sprintf(`verbosity: %d
paths:
  socket: %s
`, conf.Verbosity, conf.Paths.Socket)

	confPath := filepath.Join(t.TempDir(), "nscdshim.yaml")
	err := os.WriteFile(confPath, []byte(content), 0600)
	require.NoError(t, err, "Setup: could not write configuration file")

	return confPath
}
