package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/facegate/internal/artifact"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the descriptor store and the reference image directory",
	Long: `Apply pending schema migrations to DATABASE_URL and create IMAGES_DIR.
Running init again is harmless; already applied migrations are skipped.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// redactDatabaseURL hides the user info of a database URL so passwords are
// not printed. Plain sqlite paths are returned unchanged.
func redactDatabaseURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	// MySQL DSNs put "@tcp(...)" after the credentials, so cut at the last "@"
	// before the path.
	authority := rest
	if i := strings.Index(rest, "/"); i >= 0 && !strings.Contains(rest[:i], "(") {
		authority = rest[:i]
	} else if i := strings.Index(rest, ")/"); i >= 0 {
		authority = rest[:i+1]
	}
	at := strings.LastIndex(authority, "@")
	if at < 0 {
		return raw
	}
	return scheme + "://***@" + rest[at+1:]
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	fmt.Printf("Opening descriptor store %s...\n", redactDatabaseURL(cfg.Database.URL))
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count identities: %w", err)
	}

	artifacts := artifact.NewStore(cfg.Storage.ImagesDir)
	if err := artifacts.Init(); err != nil {
		return err
	}

	fmt.Printf("Descriptor store ready (dimension %d, %d identities)\n", store.Dim(), count)
	fmt.Printf("Reference images directory: %s\n", artifacts.Dir())
	return nil
}
