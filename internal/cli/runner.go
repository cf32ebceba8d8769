package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Makepad-fr/friends/internal/config"
	"github.com/Makepad-fr/friends/internal/friends"
	"github.com/Makepad-fr/friends/internal/logging"
	"github.com/Makepad-fr/friends/internal/model"
	"github.com/Makepad-fr/friends/internal/store/jsonstore"
	"github.com/Makepad-fr/friends/internal/store/kv"
	"github.com/Makepad-fr/friends/internal/store/memstore"
	"github.com/Makepad-fr/friends/internal/store/sqlitestore"
	"github.com/Makepad-fr/friends/internal/ui"
)

// Options are the root flags; they win over the config file and env.
type Options struct {
	ConfigPath string
	Storage    string
	DataDir    string
	Theme      string
	Verbose    bool
}

// usageError marks bad invocations (exit code 2).
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, a ...any) error { return usageError{msg: fmt.Sprintf(format, a...)} }

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string) int {
	root, a := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if terr := a.teardown(); err == nil {
		err = terr
	}
	if err == nil {
		return 0
	}
	ui.Fail(err.Error())
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(os.Stderr)
		_ = root.Usage()
		return 2
	}
	return 1
}

// app is what every subcommand works with once the root has set things up.
type app struct {
	opt     Options
	cfg     *config.Config
	cfgPath string
	log     *zap.Logger
	store *friends.Store
	kv    *kv.Store
}

// newRootCmd wires the command tree. The returned app must be torn down after Execute.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "friends",
		Short: "friends - a feed of what your friends achieved",
		Long: `friends keeps a local feed of friend achievements you can like.

Run without arguments to open the interactive feed.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          noArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Name() == "friends" || cmd.Name() == "tui")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.opt.ConfigPath, "config", "", "config file (default $FRIENDS_CONFIG or <user config dir>/friends/config.yaml)")
	f.StringVar(&a.opt.Storage, "storage", "", "storage backend: json, sqlite or memory")
	f.StringVar(&a.opt.DataDir, "data-dir", "", "directory holding the persisted feed")
	f.StringVar(&a.opt.Theme, "theme", "", "classic, neon or mono")
	f.BoolVarP(&a.opt.Verbose, "verbose", "v", false, "debug logging")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})

	root.AddCommand(
		newTUICmd(a),
		newListCmd(a),
		newLikeCmd(a),
		newAddCmd(a),
		newReseedCmd(a),
		newConfigCmd(a),
	)
	return root, a
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("unknown subcommand: %s", args[0])
	}
	return nil
}

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("usage: %s", usage)
		}
		return nil
	}
}

func (a *app) setup(interactive bool) error {
	path := a.opt.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.opt.Storage != "" {
		cfg.Storage.Backend = strings.ToLower(a.opt.Storage)
	}
	if a.opt.DataDir != "" {
		cfg.Storage.Dir = a.opt.DataDir
		cfg.Storage.SQLitePath = filepath.Join(a.opt.DataDir, "friends.db")
	}
	if a.opt.Theme != "" {
		cfg.UI.Theme = strings.ToLower(a.opt.Theme)
	}
	if err := cfg.Validate(); err != nil {
		return usagef("%v", err)
	}
	a.cfg, a.cfgPath = cfg, path
	ui.SetTheme(cfg.UI.Theme)

	if interactive {
		a.log, err = logging.ForTUI(cfg.Logging, a.opt.Verbose)
	} else {
		a.log, err = logging.New(cfg.Logging, a.opt.Verbose)
	}
	if err != nil {
		return err
	}

	backend, err := openBackend(context.Background(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.kv = kv.New(backend, a.log)

	opts := []friends.Option{friends.WithKey(cfg.Storage.Key), friends.WithLogger(a.log)}
	if cfg.Seed.File != "" {
		seed, err := model.LoadSeedFile(cfg.Seed.File)
		if err != nil {
			a.log.Warn("custom seed unusable, using built-in", zap.String("file", cfg.Seed.File), zap.Error(err))
		} else {
			opts = append(opts, friends.WithSeed(seed))
		}
	}
	a.store = friends.New(a.kv, opts...)
	a.store.Subscribe(func(s friends.Snapshot) {
		liked, _ := s.Items.Stats()
		a.log.Debug("feed changed", zap.Int("items", len(s.Items)), zap.Int("liked", liked),
			zap.Bool("favorites_only", s.FavoritesOnly))
	})
	friends.SetDefault(a.store)
	return nil
}

func openBackend(ctx context.Context, sc config.StorageConfig) (kv.Backend, error) {
	switch sc.Backend {
	case config.BackendSQLite:
		return sqlitestore.Open(ctx, sc.SQLitePath)
	case config.BackendMemory:
		return memstore.New(), nil
	default:
		return jsonstore.New(sc.Dir), nil
	}
}

func (a *app) teardown() error {
	var errs []error
	if a.store != nil {
		// pending saves are flushed here; a failed write is not fatal to the user
		if err := friends.ResetDefault(); err != nil {
			a.log.Warn("last save failed", zap.Error(err))
		}
		a.store = nil
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		a.kv = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
