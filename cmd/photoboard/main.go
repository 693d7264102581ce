// Photoboard keeps a kiosk photo wall in sync with a Google Photos album:
// it polls the album, mirrors its photos into a durable local cache, and
// parses each photo's description into a name plus caption lines for the
// display.
//
// Usage:
//
//	photoboard setup                     # interactive first-run wizard
//	photoboard daemon [--config <path>]  # start the polling sync daemon
//	photoboard sync-once [--config ...]  # single sync pass then exit
//	photoboard status                    # show config & cache state
//	photoboard version                   # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mboard/photoboard/internal/config"
	"github.com/mboard/photoboard/internal/gphotos"
	"github.com/mboard/photoboard/internal/setup"
	"github.com/mboard/photoboard/internal/state"
	"github.com/mboard/photoboard/internal/sync"
	"github.com/mboard/photoboard/internal/telemetry"
	"github.com/mboard/photoboard/internal/token"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "setup":
		return runSetup()
	case "daemon":
		return runSync(os.Args[2:], true)
	case "sync-once":
		return runSync(os.Args[2:], false)
	case "status":
		return runStatus()
	case "version":
		fmt.Println("photoboard", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q — run 'photoboard' for usage", cmd)
	}
}

// printUsage shows help and suggests setup if no config exists.
func printUsage() error {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(os.Stderr, "Photoboard — mirror a Google Photos album into a local photo wall")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  photoboard setup                  Interactive first-run wizard")
	fmt.Fprintln(os.Stderr, "  photoboard daemon [--config ...]   Run as continuous daemon")
	fmt.Fprintln(os.Stderr, "  photoboard sync-once [--config ..] Single sync pass then exit")
	fmt.Fprintln(os.Stderr, "  photoboard status                  Show config & cache state")
	fmt.Fprintln(os.Stderr, "  photoboard version                 Print version")
	fmt.Fprintln(os.Stderr, "")

	if cfgErr != nil {
		fmt.Fprintln(os.Stderr, "No config file found. Run 'photoboard setup' to get started.")
	}

	os.Exit(1)
	return nil // unreachable
}

// --- Subcommands -------------------------------------------------------------

// runSetup launches the interactive setup wizard.
func runSetup() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	wiz := setup.NewWizard(os.Stdin, os.Stdout, logger)
	return wiz.Run(ctx)
}

// runSync handles both "daemon" and "sync-once" subcommands.
func runSync(args []string, daemon bool) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return startSync(*cfgPath, *verbose, daemon)
}

// runStatus prints the current configuration and cache state.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()

	fmt.Println("Photoboard Status")
	fmt.Println("─────────────────")

	// Config state.
	var cfg *config.Config
	if _, err := os.Stat(cfgPath); err == nil {
		var loadErr error
		if cfg, loadErr = config.Load(cfgPath); loadErr == nil {
			fmt.Printf("  Config:     %s ✓\n", cfgPath)
			fmt.Printf("  Album:      %s\n", cfg.AlbumID)
			fmt.Printf("  Poll:       %s\n", cfg.PollInterval)
		} else {
			fmt.Printf("  Config:     %s (invalid: %v)\n", cfgPath, loadErr)
		}
	} else {
		fmt.Printf("  Config:     not found (%s)\n", cfgPath)
	}

	// Cache state.
	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return err
	}
	dbPath := filepath.Join(dataDir, "photoboard.db")
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Println("  Cache:      not found (never synced)")
		return nil
	}

	store, err := state.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening cache at %q: %w", dataDir, err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	photos, err := store.Photos(ctx)
	if err != nil {
		return fmt.Errorf("reading cached photos: %w", err)
	}
	st, err := store.SyncState(ctx)
	if err != nil {
		return fmt.Errorf("reading sync state: %w", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		fmt.Printf("  Cache:      %s (%s)\n", dbPath, humanSize(info.Size()))
	}
	fmt.Printf("  Photos:     %d cached\n", len(photos))
	if st.LastSyncAt.IsZero() {
		fmt.Println("  Last sync:  never")
	} else {
		fmt.Printf("  Last sync:  %s\n", st.LastSyncAt.Local().Format(time.RFC1123))
	}
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}

	return nil
}

// --- Sync core ---------------------------------------------------------------

// startSync is the shared implementation for daemon and sync-once modes.
func startSync(cfgPath string, verbose, daemon bool) error {
	// --- Logger --------------------------------------------------------------

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// --- Config --------------------------------------------------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded",
		"album_id", cfg.AlbumID,
		"poll_interval", cfg.PollInterval,
	)

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
			ServiceName:  cfg.Telemetry.ServiceName,
			Headers:      cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(context.Background(), telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	// --- Local cache ---------------------------------------------------------

	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return err
	}
	store, err := state.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening cache at %q: %w", dataDir, err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("closing cache", "error", closeErr)
		}
	}()
	logger.Info("cache opened", "data_dir", dataDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// --- Provider client -----------------------------------------------------

	tokens := token.NewStore(store, cfg.ClientID, cfg.ClientSecret, logger)
	hc, err := tokens.Client(ctx)
	if err != nil {
		var aerr *token.AuthError
		if errors.As(err, &aerr) {
			return fmt.Errorf("%w\n\nRun 'photoboard setup' to (re-)authorize", err)
		}
		return fmt.Errorf("building authorized client: %w", err)
	}
	client := gphotos.NewClient(hc, logger)

	// --- Sync engine ---------------------------------------------------------

	syncer := sync.NewSyncer(client, store, cfg.AlbumID, cfg.HTTPTimeout, logger)
	engine := sync.NewEngine(syncer, cfg.PollInterval, logger)

	// --- Dispatch mode -------------------------------------------------------

	if !daemon {
		logger.Info("running single sync pass")
		stats, err := engine.RunOnce(ctx)
		logger.Info("sync complete",
			"added", stats.Added,
			"updated", stats.Updated,
			"removed", stats.Removed,
			"failed", stats.Failed,
		)
		return err
	}

	logger.Info("daemon starting", "poll_interval", cfg.PollInterval)
	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// resolveDataDir picks the configured data directory, falling back to the
// default. A nil config (status before setup) also falls back.
func resolveDataDir(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.DataDir != "" {
		return cfg.DataDir, nil
	}
	dir, err := state.DefaultDataDir()
	if err != nil {
		return "", fmt.Errorf("resolving data directory: %w", err)
	}
	return dir, nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
