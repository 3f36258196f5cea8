package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/facegate/internal/artifact"
	"github.com/kozaktomas/facegate/internal/capture"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/extractor"
	"github.com/kozaktomas/facegate/internal/matcher"
	"github.com/kozaktomas/facegate/internal/metrics"
	"github.com/kozaktomas/facegate/internal/workflow"
	"github.com/spf13/cobra"

	// Store backends register themselves by URL scheme.
	_ "github.com/kozaktomas/facegate/internal/database/mariadb"
	_ "github.com/kozaktomas/facegate/internal/database/postgres"
	_ "github.com/kozaktomas/facegate/internal/database/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "Face verification gate backed by a descriptor store",
	Long: `Facegate enrolls people by face and later verifies whether a presented
face belongs to any enrolled identity.

Face descriptors come from an embedding service (EMBEDDING_URL) and are kept
in SQLite, PostgreSQL (pgvector) or MariaDB, selected by DATABASE_URL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// verify already printed the deny line
		var denied errDenied
		if errors.As(err, &denied) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// newLogger builds the process logger from LOG_LEVEL.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// app holds everything a command needs to run the enroll/verify workflow.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   database.IdentityStore
	metrics *metrics.Manager
	index   *matcher.Index
	svc     *workflow.Service
}

// openStore connects to DATABASE_URL and applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config) (database.IdentityStore, error) {
	store, err := database.Open(ctx, database.OpenOptions{
		URL:          cfg.Database.URL,
		Dim:          cfg.Embedding.Dim,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open descriptor store: %w", err)
	}
	return store, nil
}

// newApp wires the store, extractor, matcher and artifact directory into a
// workflow service. withIndex attaches an HNSW index for nearest ranking.
func newApp(ctx context.Context, withIndex bool) (*app, error) {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: metrics.NewManager(),
	}

	client := extractor.NewClient(cfg.Embedding.URL)
	artifacts := artifact.NewStore(cfg.Storage.ImagesDir)
	if err := artifacts.Init(); err != nil {
		store.Close()
		return nil, err
	}

	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithMetrics(a.metrics),
		workflow.WithArtifacts(artifacts),
		workflow.WithSessionOptions(
			capture.WithBudget(cfg.Capture.Budget),
			capture.WithDetector(client),
		),
	}
	if withIndex {
		idx, err := a.loadIndex(ctx)
		if err != nil {
			logger.Warn("HNSW index unavailable, nearest will scan", "error", err)
		} else {
			a.index = idx
			opts = append(opts, workflow.WithIndex(idx))
		}
	}

	a.svc = workflow.New(store, client, matcher.New(cfg.Matcher.Threshold, cfg.Embedding.Dim), opts...)
	return a, nil
}

// loadIndex restores the HNSW graph from HNSW_INDEX_PATH or builds it from the store.
func (a *app) loadIndex(ctx context.Context) (*matcher.Index, error) {
	identities, err := a.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	idx := matcher.NewIndex(a.store.Dim())
	path := a.cfg.Database.HNSWIndexPath
	if path == "" {
		idx.Build(identities)
		a.logger.Debug("HNSW index built in memory", "identities", idx.Len())
		return idx, nil
	}
	loaded, err := idx.Load(path, identities)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("HNSW index ready", "identities", idx.Len(), "path", path, "from_file", loaded)
	return idx, nil
}

// saveIndex persists the HNSW graph when HNSW_INDEX_PATH is set.
func (a *app) saveIndex() {
	if a.index == nil || a.cfg.Database.HNSWIndexPath == "" {
		return
	}
	if err := a.index.Save(a.cfg.Database.HNSWIndexPath); err != nil {
		a.logger.Warn("failed to save HNSW index", "error", err)
		return
	}
	a.logger.Debug("HNSW index saved", "path", a.cfg.Database.HNSWIndexPath)
}

func (a *app) Close() {
	a.saveIndex()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close descriptor store", "error", err)
	}
}

// readInput returns the still image at imagePath, or a capture source reading
// the frames in framesDir. Exactly one of the two must be given.
func readInput(imagePath, framesDir string, interval time.Duration) ([]byte, capture.FrameSource, error) {
	switch {
	case imagePath != "" && framesDir != "":
		return nil, nil, errors.New("--image and --frames are mutually exclusive")
	case imagePath != "":
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read image: %w", err)
		}
		return data, nil, nil
	case framesDir != "":
		src, err := capture.NewDirSource(framesDir, interval)
		if err != nil {
			return nil, nil, err
		}
		return nil, src, nil
	}
	return nil, nil, errors.New("either --image or --frames is required")
}
