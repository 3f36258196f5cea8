package cmd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/kozaktomas/facegate/internal/capture"
	"github.com/kozaktomas/facegate/internal/constants"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/workflow"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollDirCmd = &cobra.Command{
	Use:   "enroll-dir <dir>",
	Short: "Enroll every <id>_<name> image in a directory",
	Long: `Bulk-enroll reference photos named <id>_<name>.<ext>, for example
42_Jiri_Novak.jpg enrolls "Jiri Novak" under ID 42. Underscores in the name
become spaces. Identities that already exist are skipped, so the command can
be re-run after a partial import.

Examples:
  facegate enroll-dir ./people
  facegate enroll-dir ./people --concurrency 8
  facegate enroll-dir ./people --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollDir,
}

func init() {
	rootCmd.AddCommand(enrollDirCmd)

	enrollDirCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of parallel workers")
	enrollDirCmd.Flags().Bool("dry-run", false, "List what would be enrolled without touching the store")
}

// enrollFile is one parsed <id>_<name> image.
type enrollFile struct {
	Path string
	ID   int64
	Name string
}

// parseEnrollFileName extracts the identity ID and display name from a file name.
func parseEnrollFileName(name string) (int64, string, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idPart, namePart, ok := strings.Cut(base, "_")
	if !ok {
		return 0, "", fmt.Errorf("%s: expected <id>_<name>", name)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("%s: invalid ID %q", name, idPart)
	}
	display := strings.Join(strings.Fields(strings.ReplaceAll(namePart, "_", " ")), " ")
	if display == "" {
		return 0, "", fmt.Errorf("%s: empty name", name)
	}
	return id, display, nil
}

// scanEnrollDir lists enrollable images in dir, returning unparsable names separately.
func scanEnrollDir(dir string) ([]enrollFile, []error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading directory: %w", err)
	}

	var files []enrollFile
	var bad []error
	for _, e := range entries {
		if e.IsDir() || !capture.IsFrameFile(e.Name()) {
			continue
		}
		id, name, err := parseEnrollFileName(e.Name())
		if err != nil {
			bad = append(bad, err)
			continue
		}
		files = append(files, enrollFile{Path: filepath.Join(dir, e.Name()), ID: id, Name: name})
	}
	slices.SortFunc(files, func(a, b enrollFile) int { return cmp.Compare(a.ID, b.ID) })
	return files, bad, nil
}

func runEnrollDir(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	dryRun := mustGetBool(cmd, "dry-run")
	if concurrency <= 0 {
		concurrency = 1
	}

	files, bad, err := scanEnrollDir(args[0])
	if err != nil {
		return err
	}
	for _, e := range bad {
		fmt.Printf("Skipping %v\n", e)
	}
	if len(files) == 0 {
		fmt.Println("No enrollable images found")
		return nil
	}

	if dryRun {
		for _, f := range files {
			fmt.Printf("  %d  %s  (%s)\n", f.ID, f.Name, filepath.Base(f.Path))
		}
		fmt.Printf("\nWould enroll %d identities\n", len(files))
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Enrolling %d images with %d workers...\n", len(files), concurrency)
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var mu sync.Mutex
	var enrolled, skipped int
	var failures []string

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, file := range files {
		wg.Add(1)
		go func(f enrollFile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer bar.Add(1)

			err := enrollOne(ctx, a.svc, f)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				enrolled++
			case errors.Is(err, database.ErrDuplicateIdentity):
				skipped++
			default:
				failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(f.Path), err))
			}
		}(file)
	}

	wg.Wait()
	fmt.Println()

	for _, f := range failures {
		fmt.Printf("  failed %s\n", f)
	}
	total, _ := a.store.Count(ctx)
	fmt.Printf("\nCompleted: %d enrolled, %d already present, %d errors\n", enrolled, skipped, len(failures))
	fmt.Printf("Total identities in store: %d\n", total)
	return nil
}

func enrollOne(ctx context.Context, svc *workflow.Service, f enrollFile) error {
	image, err := os.ReadFile(f.Path)
	if err != nil {
		return err
	}
	_, err = svc.Enroll(ctx, workflow.EnrollRequest{ID: f.ID, Name: f.Name, Image: image})
	return err
}
