package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/facegate/internal/workflow"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a new identity from an image or a capture session",
	Long: `Enroll a person under a numeric ID and display name.

The face is taken either from a still image (--image) or from a capture
session over a directory of frames (--frames). A capture session keeps
reading frames until the capture budget elapses; the frame current at that
moment is used.

Examples:
  # Enroll from a photo
  facegate enroll --id 1 --name "Alice" --image alice.jpg

  # Enroll from captured frames
  facegate enroll --id 2 --name "Bob" --frames ./frames/bob`,
	Args: cobra.NoArgs,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int64("id", 0, "Identity ID (positive, unique)")
	enrollCmd.Flags().String("name", "", "Display name")
	enrollCmd.Flags().String("image", "", "Path to a still image")
	enrollCmd.Flags().String("frames", "", "Directory of frames to run a capture session over")
	_ = enrollCmd.MarkFlagRequired("id")
	_ = enrollCmd.MarkFlagRequired("name")
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	id := mustGetInt64(cmd, "id")
	name := mustGetString(cmd, "name")

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

	identity, err := a.svc.Enroll(ctx, workflow.EnrollRequest{ID: id, Name: name, Image: image, Source: src})
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	fmt.Printf("Enrolled %s (ID %d)\n", identity.Name, identity.ID)
	return nil
}
