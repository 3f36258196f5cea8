package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// OpenOptions carries everything a backend needs to open a store.
type OpenOptions struct {
	URL          string
	Dim          int
	MaxOpenConns int
	MaxIdleConns int
}

// Opener constructs a store for a registered URL scheme.
type Opener func(ctx context.Context, opts OpenOptions) (IdentityStore, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

// RegisterBackend registers a store constructor for a URL scheme.
// This is called by the backend packages from init() to avoid import cycles.
func RegisterBackend(scheme string, opener Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[scheme] = opener
}

// Backends returns the registered schemes in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	schemes := make([]string, 0, len(backends))
	for s := range backends {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// SchemeOf returns the backend scheme for a database URL.
// Plain file paths (no scheme) select the sqlite backend.
func SchemeOf(rawURL string) string {
	idx := strings.Index(rawURL, "://")
	if idx <= 0 {
		return "sqlite"
	}
	// MySQL DSNs like user:pass@tcp(host:3306)/db are not valid URLs, so the
	// scheme is cut by hand instead of going through net/url.
	scheme := strings.ToLower(rawURL[:idx])
	switch scheme {
	case "postgresql":
		return "postgres"
	case "mariadb":
		return "mysql"
	}
	return scheme
}

// Open opens the store backend selected by the URL scheme.
func Open(ctx context.Context, opts OpenOptions) (IdentityStore, error) {
	if opts.URL == "" {
		return nil, errors.New("database URL is required")
	}
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("descriptor dimension must be positive, got %d", opts.Dim)
	}

	scheme := SchemeOf(opts.URL)
	backendsMu.RLock()
	opener, ok := backends[scheme]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no store backend registered for scheme %q (available: %s)",
			scheme, strings.Join(Backends(), ", "))
	}

	store, err := opener(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", scheme, err)
	}
	return store, nil
}
