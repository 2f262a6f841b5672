// Package cli provides the drift command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftdev/drift/application"
	"github.com/driftdev/drift/domain/pattern"
	"github.com/driftdev/drift/infrastructure/config"
	"github.com/driftdev/drift/infrastructure/logging"
	badgerstore "github.com/driftdev/drift/infrastructure/storage/badger"
	"github.com/driftdev/drift/infrastructure/storage/cached"
	"github.com/driftdev/drift/infrastructure/storage/filesystem"
	"github.com/driftdev/drift/infrastructure/storage/memory"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// driftDirName is the data directory under the project root.
const driftDirName = ".drift"

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	rootDir    string
	configPath string
	logLevel   string

	cfg *config.Config
}

// New creates the drift CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "drift",
		Short: "Pattern knowledge base for code conventions",
		Long: `drift maintains a versioned, confidence-scored knowledge base of the
code conventions discovered in a project. Detected patterns start out
as discovered; reviewing them promotes conventions to approved or
silences noise as ignored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.loadConfig()
		},
	}

	flags := app.root.PersistentFlags()
	flags.StringVarP(&app.rootDir, "root", "r", ".", "Project root directory")
	flags.StringVarP(&app.configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&app.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newStatusCmd(),
		app.newCategoriesCmd(),
		app.newListCmd(),
		app.newShowCmd(),
		app.newSearchCmd(),
		app.newApproveCmd(),
		app.newIgnoreCmd(),
		app.newMigrateCmd(),
		app.newServeCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// loadConfig resolves the configuration from --config, the project
// root, or the built-in defaults, then initializes logging.
func (a *App) loadConfig() error {
	loader := config.NewLoader()

	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = loader.LoadFile(a.configPath)
	} else {
		cfg, err = loader.LoadOrDefault(a.rootDir)
	}
	if err != nil {
		return err
	}
	if a.rootDir != "." {
		cfg.Root = a.rootDir
	}

	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	logging.Init(logging.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	if a.logLevel != "" {
		logging.SetLevel(a.logLevel)
	}

	logging.Debug().
		Add(logging.Str("backend", string(cfg.Storage.Backend))).
		Add(logging.Str("root", cfg.Root)).
		Msg("configuration loaded")

	a.cfg = cfg
	return nil
}

// driftDir returns the data directory for the configured project root.
func (a *App) driftDir() string {
	return filepath.Join(a.cfg.Root, driftDirName)
}

// openService builds the repository stack configured by a.cfg and
// wraps it in the pattern service. The returned closer flushes and
// closes the repository.
func (a *App) openService(ctx context.Context) (*application.Service, func() error, error) {
	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	if a.cfg.Cache.Enabled {
		repo = cached.New(repo, cached.Options{
			PatternTTL: a.cfg.Cache.PatternTTL,
			QueryTTL:   a.cfg.Cache.QueryTTL,
		})
	}

	svc := application.NewService(repo,
		application.WithProjectRoot(a.cfg.Root),
		application.WithStatusTTL(a.cfg.Cache.StatusTTL),
	)

	return svc, repo.Close, nil
}

func (a *App) openRepository(ctx context.Context) (pattern.Repository, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendMemory:
		repo := memory.NewRepository()
		if err := repo.Initialize(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case config.BackendBadger:
		repo := badgerstore.NewRepository(badgerstore.Config{
			Dir: filepath.Join(a.driftDir(), "badger"),
		})
		if err := repo.Initialize(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case config.BackendFilesystem:
		return filesystem.Open(ctx, a.driftDir(), filesystem.OpenOptions{
			AutoMigrate:     a.cfg.Storage.AutoMigrate,
			KeepLegacyFiles: a.cfg.Storage.KeepLegacyFiles,
		})

	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "drift version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
