package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/spf13/cobra"
)

var nearestCmd = &cobra.Command{
	Use:   "nearest <image>",
	Short: "Rank the enrolled identities closest to a face",
	Long: `Rank enrolled identities by cosine distance to the face in an image.

This is an operator tool and never admits anyone. PostgreSQL stores rank with
pgvector; other backends use an HNSW index, persisted to HNSW_INDEX_PATH when set.

Examples:
  facegate nearest visitor.jpg
  facegate nearest visitor.jpg --k 10`,
	Args: cobra.ExactArgs(1),
	RunE: runNearest,
}

func init() {
	rootCmd.AddCommand(nearestCmd)

	nearestCmd.Flags().Int("k", constants.DefaultNearestLimit, "Number of identities to return")
}

func runNearest(cmd *cobra.Command, args []string) error {
	k := mustGetInt(cmd, "k")
	if k <= 0 || k > constants.MaxNearestLimit {
		return fmt.Errorf("--k must be between 1 and %d", constants.MaxNearestLimit)
	}

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	ctx := context.Background()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.svc.Nearest(ctx, image, k)
	if err != nil {
		return fmt.Errorf("ranking failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	for i, r := range results {
		marker := ""
		if r.Distance < a.cfg.Matcher.Threshold {
			marker = "  (within threshold)"
		}
		fmt.Printf("%2d. %-30s ID %-6d distance %.4f%s\n", i+1, r.Identity.Name, r.Identity.ID, r.Distance, marker)
	}
	return nil
}
