package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mboard/photoboard/internal/config"
	"github.com/mboard/photoboard/internal/gphotos"
	"github.com/mboard/photoboard/internal/state"
	"github.com/mboard/photoboard/internal/token"
)

// Wizard guides the user through first-run configuration: Google API
// credentials, the OAuth consent flow, and album selection.
type Wizard struct {
	prompt *Prompter
	logger *slog.Logger
	w      io.Writer
}

// NewWizard creates a Wizard wired to the given I/O and logger.
func NewWizard(r io.Reader, w io.Writer, logger *slog.Logger) *Wizard {
	return &Wizard{
		prompt: NewPrompter(r, w),
		logger: logger,
		w:      w,
	}
}

// Run executes the interactive setup wizard. It walks the user through the
// OAuth authorization, album selection, and config file creation. The granted
// token is persisted in the local cache before the config is written, so a
// wizard aborted halfway leaves no partially working installation.
func (wiz *Wizard) Run(ctx context.Context) error {
	fmt.Fprintf(wiz.w, "\nWelcome to Photoboard Setup!\n")
	fmt.Fprintf(wiz.w, "This wizard connects the board to a Google Photos album.\n\n")

	// Check for existing config.
	cfgPath, err := config.DefaultPath()
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	if _, statErr := os.Stat(cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", cfgPath)
		if !wiz.prompt.Confirm("Overwrite existing configuration?", false) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return nil
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	// Step 1: Google API credentials.
	fmt.Fprintf(wiz.w, "Step 1/4 — Google API Credentials\n")
	fmt.Fprintf(wiz.w, "  Create an OAuth client of type \"Desktop app\" in the Google Cloud\n")
	fmt.Fprintf(wiz.w, "  console with the Photos Library API enabled, then paste its credentials.\n\n")

	clientID := wiz.prompt.String("Client ID", "")
	clientSecret := wiz.prompt.Secret("Client secret")
	fmt.Fprintf(wiz.w, "\n")

	// Step 2: Authorize. The token lands in the cache's credentials row,
	// so the store has to exist before the exchange.
	fmt.Fprintf(wiz.w, "Step 2/4 — Authorize\n")

	dataDir, err := state.DefaultDataDir()
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}
	store, err := state.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening local cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	tokens := token.NewStore(store, clientID, clientSecret, wiz.logger)

	nonce := uuid.NewString()
	fmt.Fprintf(wiz.w, "  Open this URL in a browser and grant read-only Photos access:\n\n")
	fmt.Fprintf(wiz.w, "    %s\n\n", tokens.AuthCodeURL(nonce))
	fmt.Fprintf(wiz.w, "  After granting, the browser lands on a localhost URL that will not\n")
	fmt.Fprintf(wiz.w, "  load. Copy the \"code\" parameter from its address bar.\n\n")

	code := wiz.prompt.Secret("Authorization code")

	fmt.Fprintf(wiz.w, "  Exchanging code...")
	if _, err := tokens.Exchange(ctx, code); err != nil {
		fmt.Fprintf(wiz.w, " ✗\n")
		return fmt.Errorf("authorization failed: %w\n\n  Check the code and try again", err)
	}
	fmt.Fprintf(wiz.w, " ✓\n\n")

	// Step 3: Pick the album.
	fmt.Fprintf(wiz.w, "Step 3/4 — Album\n")

	hc, err := tokens.Client(ctx)
	if err != nil {
		return fmt.Errorf("building authorized client: %w", err)
	}
	albumID, err := wiz.pickAlbum(ctx, gphotos.NewClient(hc, wiz.logger))
	if err != nil {
		return err
	}

	// Step 4: Poll interval and config file.
	fmt.Fprintf(wiz.w, "Step 4/4 — Save Configuration\n")

	pollStr := wiz.prompt.String("How often to check the album for changes? (1m–24h)", "5m")
	pollInterval, parseErr := time.ParseDuration(pollStr)
	if parseErr != nil {
		pollInterval = 5 * time.Minute
		fmt.Fprintf(wiz.w, "  (invalid duration, using default 5m)\n")
	}

	cfg := &config.Config{
		AlbumID:      albumID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		PollInterval: pollInterval,
	}
	if err := cfg.Write(cfgPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Config written to %s\n\n", cfgPath)

	fmt.Fprintf(wiz.w, "Setup complete!\n")
	fmt.Fprintf(wiz.w, "  First sync:  photoboard sync-once\n")
	fmt.Fprintf(wiz.w, "  Run daemon:  photoboard daemon\n")
	fmt.Fprintf(wiz.w, "  Check:       photoboard status\n\n")

	return nil
}

// pickAlbum lists the account's albums and lets the user choose one. Falls
// back to manual entry when the listing fails or comes back empty.
func (wiz *Wizard) pickAlbum(ctx context.Context, client *gphotos.Client) (string, error) {
	fmt.Fprintf(wiz.w, "  Listing your albums...\n")

	albums, err := client.ListAlbums(ctx)
	if err != nil {
		wiz.logger.Warn("could not list albums", "error", err)
		fmt.Fprintf(wiz.w, "  ⚠ Could not list albums — you can enter the album ID manually.\n")
	}
	if len(albums) == 0 {
		id := wiz.prompt.String("Album ID", "")
		fmt.Fprintf(wiz.w, "\n")
		return id, nil
	}

	options := make([]string, len(albums))
	for i, a := range albums {
		options[i] = fmt.Sprintf("%s (%s items)", a.Title, a.MediaItemsCount)
	}

	idx, err := wiz.prompt.Select("Album to display", options)
	if err != nil {
		return "", fmt.Errorf("selecting album: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Using %q\n\n", albums[idx].Title)
	return albums[idx].ID, nil
}
