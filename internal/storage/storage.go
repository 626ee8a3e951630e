package storage

import (
	"fmt"
	"strings"
	"time"
)

// Store remembers the last revision published for each campaign key.
type Store interface {
	Close() error
	// Seen reports whether revision is the one last marked for key and has not expired.
	Seen(key, revision string) (bool, error)
	Mark(key, revision string) error
}

// Options controls retention for concrete backends.
type Options struct {
	RevisionTTL     time.Duration
	CleanupInterval time.Duration
	Now             func() time.Time
}

const (
	defaultRevisionTTL     = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RevisionTTL <= 0 {
		opts.RevisionTTL = defaultRevisionTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// Key builds the store key for a campaign of a target.
func Key(targetID, campaignID string) string {
	return targetID + "/" + campaignID
}

type noopStore struct{}

func (noopStore) Close() error                      { return nil }
func (noopStore) Seen(string, string) (bool, error) { return false, nil }
func (noopStore) Mark(string, string) error         { return nil }
