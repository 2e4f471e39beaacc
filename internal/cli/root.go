// Package cli implements the netinv command line. Every command loads the
// inventory from storage, runs one operation and saves when it mutated.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"netinventory/internal/config"
	"netinventory/internal/logging"
	"netinventory/internal/service"
	"netinventory/internal/storage"
)

type rootOptions struct {
	configPath string
	file       string
	backend    string
	logLevel   string
}

// app is the state shared by every subcommand once PersistentPreRunE ran
type app struct {
	opts  rootOptions
	cfg   *config.Config
	log   *logrus.Logger
	store storage.Store
	svc   *service.InventoryService
}

// Execute runs the netinv command tree with os.Args and releases the store
// even when the command failed.
func Execute(ctx context.Context) error {
	root, a := newRootCommand()
	defer a.close()
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the netinv command tree
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "netinv",
		Short:         "Track routers, switches, access points and endpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "config file (default: search standard locations)")
	flags.StringVarP(&a.opts.file, "file", "f", "", "inventory file or database (overrides config)")
	flags.StringVar(&a.opts.backend, "backend", "", "storage backend: json or sqlite (overrides config)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level (overrides config)")

	root.AddCommand(
		newAddCommand(a),
		newRemoveCommand(a),
		newShowCommand(a),
		newListCommand(a),
		newFindIPCommand(a),
		newConnectCommand(a),
		newDisconnectCommand(a),
		newDanglingCommand(a),
		newStatsCommand(a),
		newTrafficCommand(a),
		newSuspendCommand(a),
		newPolicyCommand(a),
		newExportCommand(a),
		newImportCommand(a),
	)
	return root, a
}

func (a *app) open(cmd *cobra.Command) error {
	var err error
	if a.opts.configPath != "" {
		a.cfg, _, err = config.LoadFromPath(a.opts.configPath)
	} else {
		a.cfg, _, err = config.Load()
	}
	if err != nil {
		return err
	}

	if a.opts.backend != "" {
		a.cfg.Storage.Backend = a.opts.backend
	}
	if a.opts.file != "" {
		a.cfg.Storage.Path = a.opts.file
	}
	if a.opts.logLevel != "" {
		a.cfg.Log.Level = a.opts.logLevel
	}
	// stdout belongs to command output
	if a.cfg.Log.Output == logging.OutputConsole {
		a.cfg.Log.Output = logging.OutputStderr
	}

	a.log, err = logging.New(a.cfg.Log)
	if err != nil {
		return err
	}

	a.store, err = storage.Open(a.cfg.Storage.Backend, a.cfg.Storage.Path, a.log)
	if err != nil {
		return err
	}

	a.svc, err = service.New(cmd.Context(), a.store, nil,
		service.WithLogger(a.log),
		service.WithAutoSave(true),
		service.WithPolicy(service.Policy{
			LimitMB:        a.cfg.Policy.LimitMB,
			SuspendMinutes: a.cfg.Policy.SuspendMinutes,
		}),
	)
	if err != nil {
		a.store.Close()
		a.store = nil
		return err
	}
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
