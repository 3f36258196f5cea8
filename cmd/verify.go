package cmd

import (
	"fmt"

	"github.com/kozaktomas/facegate/internal/workflow"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a face against all enrolled identities",
	Long: `Verify whether the presented face belongs to an enrolled identity.

The best match is admitted only when its cosine distance is below the match
threshold (MATCH_THRESHOLD, default 0.35). Exits with status 2 on deny.

Examples:
  facegate verify --image visitor.jpg
  facegate verify --frames ./frames/door`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

// errDenied makes the process exit non-zero when nobody matched.
type errDenied struct{}

func (errDenied) Error() string { return "access denied" }

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("image", "", "Path to a still image")
	verifyCmd.Flags().String("frames", "", "Directory of frames to run a capture session over")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	image, src, err := readInput(mustGetString(cmd, "image"), mustGetString(cmd, "frames"), a.cfg.Capture.FrameInterval)
	if err != nil {
		return err
	}
	if src != nil {
		fmt.Printf("Capturing for %s...\n", a.cfg.Capture.Budget)
	}

	outcome, err := a.svc.Verify(ctx, workflow.VerifyRequest{Image: image, Source: src})
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Println(formatOutcome(outcome))
	if !outcome.Admitted {
		return errDenied{}
	}
	return nil
}

// formatOutcome renders a verification outcome as a single status line.
func formatOutcome(o workflow.Outcome) string {
	if o.Admitted {
		return fmt.Sprintf("ADMIT %s (ID %d, distance %.4f)", o.Identity.Name, o.Identity.ID, o.Score)
	}
	if !o.HasScore {
		return fmt.Sprintf("DENY (no identities compared, %d enrolled)", o.Candidates)
	}
	return fmt.Sprintf("DENY (closest distance %.4f over %d identities)", o.Score, o.Candidates)
}
