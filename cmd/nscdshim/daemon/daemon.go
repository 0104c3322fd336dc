// Package daemon represents the nscd protocol service and its configuration.
package daemon

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ubuntu/decorate"
	"github.com/ubuntu/nscdshim/internal/consts"
	"github.com/ubuntu/nscdshim/internal/daemon"
	"github.com/ubuntu/nscdshim/internal/log"
	"github.com/ubuntu/nscdshim/internal/users/localentries"
)

// cmdName is the binary name for the daemon.
const cmdName = "nscdshim"

// App encapsulates commands and options of the daemon, which can be controlled
// by env variables and config files.
type App struct {
	rootCmd cobra.Command
	viper   *viper.Viper
	config  daemonConfig

	daemon *daemon.Daemon

	ready chan struct{}
}

// only overridable for tests.
type systemPaths struct {
	Socket string
}

// daemonConfig defines configuration parameters of the daemon.
type daemonConfig struct {
	Verbosity int
	Paths     systemPaths
}

// New registers commands and returns a new App.
func New() *App {
	a := App{ready: make(chan struct{})}
	a.rootCmd = cobra.Command{
		Use:   fmt.Sprintf("%s COMMAND", cmdName),
		Short: "Name service shim daemon",
		Long:  "Daemon answering libc nscd lookups from the system identity database.",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.rootCmd.SilenceUsage = true

			// Set config defaults.
			a.config = daemonConfig{
				Paths: systemPaths{
					Socket: "",
				},
			}

			// Install and unmarshal configuration.
			if err := initViperConfig(cmdName, &a.rootCmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to decode configuration into struct: %w", err)
			}

			setVerboseMode(a.config.Verbosity)
			log.Debugf(context.Background(), "Verbosity: %d", a.config.Verbosity)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(a.config)
		},
		// We display usage error ourselves.
		SilenceErrors: true,
	}

	a.viper = viper.New()

	installVerbosityFlag(&a.rootCmd, a.viper)
	installConfigFlag(&a.rootCmd)

	// subcommands
	a.installVersion()

	return &a
}

// serve creates the daemon on the configured socket and answers requests on
// it. This call is blocking until we quit it.
func (a *App) serve(config daemonConfig) error {
	ctx := context.Background()

	socketPath := config.Paths.Socket
	if socketPath == "" && os.Getenv("LISTEN_FDS") == "" {
		// Not socket activated: listen on the path the libc client expects.
		socketPath = consts.DefaultSocket
	}

	var daemonopts []daemon.Option
	if socketPath != "" {
		daemonopts = append(daemonopts, daemon.WithSocketPath(socketPath))
	}

	d, err := daemon.New(ctx, localentries.DB{}, daemonopts...)
	if err != nil {
		close(a.ready)
		return err
	}

	a.daemon = d
	close(a.ready)

	return d.Serve(ctx)
}

// installVerbosityFlag adds the -v and -vv options and returns the reference to it.
func installVerbosityFlag(cmd *cobra.Command, vip *viper.Viper) *int {
	r := cmd.PersistentFlags().CountP("verbosity", "v", "issue INFO (-v) or DEBUG (-vv) output")
	decorate.LogOnError(vip.BindPFlag("verbosity", cmd.PersistentFlags().Lookup("verbosity")))
	return r
}

// installVersion adds the version subcommand.
func (a *App) installVersion() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: fmt.Sprintf("Returns version of %s and exits", cmdName),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s\t%s\n", cmdName, consts.Version)
			return nil
		},
	}
	a.rootCmd.AddCommand(cmd)
}

// Run executes the command and associated process. It returns an error on syntax/usage error.
func (a *App) Run() error {
	return a.rootCmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.rootCmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit gracefully shuts down the service.
func (a *App) Quit() {
	a.WaitReady()
	if a.daemon == nil {
		return
	}
	a.daemon.Quit(context.Background(), false)
}

// WaitReady signals when the daemon is ready.
// Note: we need to use a pointer to not copy the App object before the daemon is ready,
// and thus, creates a data race.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns a copy of the root command for the app.
// Shouldn't be in general necessary apart when running generators.
func (a App) RootCmd() cobra.Command {
	return a.rootCmd
}
