package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an identity and its reference image",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid identity ID %q", args[0])
	}

	ctx := context.Background()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := a.svc.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete identity %d: %w", id, err)
	}
	fmt.Printf("Deleted %s (ID %d)\n", identity.Name, identity.ID)
	return nil
}
