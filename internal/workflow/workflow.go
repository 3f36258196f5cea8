// Package workflow orchestrates capture, extraction, storage and matching
// into enrollment and verification outcomes.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/facegate/internal/artifact"
	"github.com/kozaktomas/facegate/internal/capture"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/extractor"
	"github.com/kozaktomas/facegate/internal/matcher"
	"github.com/kozaktomas/facegate/internal/metrics"
)

// Service runs enrollment and verification against explicit dependencies.
type Service struct {
	store      database.IdentityStore
	extractor  extractor.Extractor
	matcher    *matcher.Matcher
	artifacts  *artifact.Store
	index      *matcher.Index
	logger     *slog.Logger
	metrics    *metrics.Manager
	sessionOpt []capture.Option

	// extractMu keeps the extractor single-use-at-a-time.
	extractMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithArtifacts stores a reference image for every enrolled identity.
func WithArtifacts(a *artifact.Store) Option {
	return func(s *Service) { s.artifacts = a }
}

// WithIndex uses an HNSW index for Nearest.
func WithIndex(idx *matcher.Index) Option {
	return func(s *Service) { s.index = idx }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSessionOptions applies opts to every capture session the service starts.
func WithSessionOptions(opts ...capture.Option) Option {
	return func(s *Service) { s.sessionOpt = append(s.sessionOpt, opts...) }
}

// New creates a workflow service.
func New(store database.IdentityStore, ext extractor.Extractor, m *matcher.Matcher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		extractor: ext,
		matcher:   m,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying identity store.
func (s *Service) Store() database.IdentityStore {
	return s.store
}

// EnrollRequest registers a new identity. Exactly one of Image or Source is used;
// Image wins when both are set.
type EnrollRequest struct {
	ID     int64
	Name   string
	Image  []byte
	Source capture.FrameSource
}

// VerifyRequest checks a face against all enrolled identities.
type VerifyRequest struct {
	Image  []byte
	Source capture.FrameSource
}

// Outcome is the result of a verification. Identity is set only when admitted.
type Outcome struct {
	Admitted   bool
	Identity   *database.Identity
	Score      float64
	HasScore   bool
	Candidates int
}

// acquireImage returns the still image or runs a capture session to completion.
func (s *Service) acquireImage(ctx context.Context, image []byte, src capture.FrameSource) ([]byte, error) {
	if len(image) > 0 {
		return image, nil
	}
	if src == nil {
		return nil, fmt.Errorf("%w: image or frame source is required", ErrInvalidRequest)
	}

	session := capture.New(append([]capture.Option{capture.WithLogger(s.logger)}, s.sessionOpt...)...)
	err := session.Run(ctx, src)
	s.metrics.ObserveCaptureFrames(session.Status().FramesSeen)
	if errors.Is(err, capture.ErrCaptureSourceLost) {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	if err != nil {
		return nil, err
	}

	frame, err := session.TerminalFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	return frame.Data, nil
}

func (s *Service) extract(ctx context.Context, image []byte) ([]float32, error) {
	s.extractMu.Lock()
	defer s.extractMu.Unlock()

	start := time.Now()
	desc, err := s.extractor.Extract(ctx, image)
	s.metrics.ObserveExtraction(time.Since(start))

	switch {
	case errors.Is(err, extractor.ErrNoFace):
		return nil, fmt.Errorf("%w: %w", ErrNoFaceDetected, err)
	case errors.Is(err, extractor.ErrInvalidImage):
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	case err != nil:
		return nil, fmt.Errorf("extract descriptor: %w", err)
	}
	return desc, nil
}

// Enroll captures or takes an image, extracts a descriptor and stores it.
// The reference image is saved afterwards on a best-effort basis.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*database.Identity, error) {
	identity, err := s.enroll(ctx, req)
	s.metrics.RecordEnrollment(enrollOutcome(err))
	return identity, err
}

func (s *Service) enroll(ctx context.Context, req EnrollRequest) (*database.Identity, error) {
	name := strings.TrimSpace(req.Name)
	if req.ID <= 0 {
		return nil, fmt.Errorf("%w: identity id must be positive", ErrInvalidRequest)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidRequest)
	}

	if _, err := s.store.Get(ctx, req.ID); err == nil {
		return nil, fmt.Errorf("identity %d: %w", req.ID, database.ErrDuplicateIdentity)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	image, err := s.acquireImage(ctx, req.Image, req.Source)
	if err != nil {
		return nil, err
	}

	desc, err := s.extract(ctx, image)
	if err != nil {
		return nil, err
	}

	identity := database.Identity{ID: req.ID, Name: name, Descriptor: desc, CreatedAt: time.Now().UTC()}
	if err := s.store.Insert(ctx, identity); err != nil {
		return nil, err
	}
	s.logger.Info("identity enrolled", "id", identity.ID, "name", identity.Name)

	if s.artifacts != nil {
		if path, err := s.artifacts.Save(identity.ID, identity.Name, image); err != nil {
			s.logger.Warn("failed to save reference image", "id", identity.ID, "error", err)
		} else {
			s.logger.Debug("reference image saved", "id", identity.ID, "path", path)
		}
	}
	if s.index != nil {
		s.index.Add(identity)
	}
	return &identity, nil
}

func enrollOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeEnrolled
	case errors.Is(err, ErrNoFaceDetected):
		return metrics.OutcomeNoFace
	case errors.Is(err, ErrCaptureFailed):
		return metrics.OutcomeCaptureFailed
	case errors.Is(err, database.ErrDuplicateIdentity):
		return metrics.OutcomeDuplicate
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, database.ErrInvalidDescriptor):
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}

// Verify captures or takes an image and matches it against a snapshot of all
// enrolled identities.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (Outcome, error) {
	outcome, err := s.verify(ctx, req)
	switch {
	case err != nil:
		s.metrics.RecordVerification(verifyErrorOutcome(err))
	case outcome.Admitted:
		s.metrics.RecordVerification(metrics.OutcomeAdmitted)
	default:
		s.metrics.RecordVerification(metrics.OutcomeDenied)
	}
	return outcome, err
}

func (s *Service) verify(ctx context.Context, req VerifyRequest) (Outcome, error) {
	image, err := s.acquireImage(ctx, req.Image, req.Source)
	if err != nil {
		return Outcome{}, err
	}

	desc, err := s.extract(ctx, image)
	if err != nil {
		return Outcome{}, err
	}

	candidates, err := s.store.ListAll(ctx)
	if err != nil {
		return Outcome{}, err
	}
	s.metrics.SetIdentities(len(candidates))

	result, err := s.matcher.FindBest(desc, candidates)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		Admitted:   result.Decision == matcher.Admit,
		Identity:   result.Best,
		Score:      result.Score,
		HasScore:   result.HasScore,
		Candidates: len(candidates),
	}
	if result.HasScore {
		s.metrics.ObserveMatchScore(result.Score)
	}

	if outcome.Admitted {
		s.logger.Info("access granted", "id", outcome.Identity.ID, "name", outcome.Identity.Name, "score", outcome.Score)
	} else {
		s.logger.Info("access denied", "score", outcome.Score, "has_score", outcome.HasScore, "candidates", len(candidates))
	}
	return outcome, nil
}

func verifyErrorOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNoFaceDetected):
		return metrics.OutcomeNoFace
	case errors.Is(err, ErrCaptureFailed):
		return metrics.OutcomeCaptureFailed
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, database.ErrInvalidDescriptor):
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}

// Delete removes an identity and its reference image.
func (s *Service) Delete(ctx context.Context, id int64) (*database.Identity, error) {
	identity, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordDeletion()

	if s.artifacts != nil {
		if _, err := s.artifacts.Remove(id); err != nil {
			s.logger.Warn("failed to remove reference image", "id", id, "error", err)
		}
	}
	if s.index != nil {
		s.index.Delete(id)
	}
	s.logger.Info("identity deleted", "id", identity.ID, "name", identity.Name)
	return identity, nil
}

// List returns all enrolled identities ordered by ID.
func (s *Service) List(ctx context.Context) ([]database.Identity, error) {
	identities, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.SetIdentities(len(identities))
	return identities, nil
}

// Nearest ranks the k enrolled identities closest to the face in image.
// Backends with server-side search are used directly; otherwise the HNSW
// index is consulted, falling back to an exact scan.
func (s *Service) Nearest(ctx context.Context, image []byte, k int) ([]database.ScoredIdentity, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidRequest)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidRequest)
	}

	desc, err := s.extract(ctx, image)
	if err != nil {
		return nil, err
	}
	if err := database.ValidateDescriptor(desc, s.store.Dim()); err != nil {
		return nil, err
	}

	if searcher, ok := s.store.(database.NearestSearcher); ok {
		return searcher.NearestN(ctx, desc, k)
	}

	identities, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if s.index == nil {
		return s.matcher.Rank(desc, identities, k)
	}

	if s.index.Len() != len(identities) {
		s.index.Build(identities)
	}
	results, err := s.index.Search(desc, k)
	if errors.Is(err, matcher.ErrIndexEmpty) {
		return nil, nil
	}
	return results, err
}
