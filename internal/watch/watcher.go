package watch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/samvad-hq/campaign-desk/internal/domain"
	"github.com/samvad-hq/campaign-desk/internal/logger"
	"github.com/samvad-hq/campaign-desk/internal/storage"
	"github.com/samvad-hq/campaign-desk/pkg/httpclient"
	"github.com/samvad-hq/campaign-desk/pkg/publishers"
	"github.com/samvad-hq/campaign-desk/pkg/targets"
)

// Service polls every target's first campaign page and publishes one event
// per campaign revision it has not published before.
type Service struct {
	store     storage.Store
	publisher EventPublisher
	previewer CampaignPreviewer
	customPrv bool
	log       logger.Logger
	apiOpts   []httpclient.Option

	mu       sync.Mutex
	adapters map[string]*httpclient.Adapter
}

// Option customizes a Service.
type Option func(*Service)

// WithPreviewer replaces the landing-page previewer; nil disables previews.
func WithPreviewer(p CampaignPreviewer) Option {
	return func(s *Service) {
		s.previewer = p
		s.customPrv = true
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAdapterOptions are passed to every target adapter the service builds.
func WithAdapterOptions(opts ...httpclient.Option) Option {
	return func(s *Service) { s.apiOpts = append(s.apiOpts, opts...) }
}

// NewService wires a watcher with its revision store and publisher.
func NewService(store storage.Store, pub EventPublisher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: pub,
		log:       &logger.NopLogger{},
		adapters:  make(map[string]*httpclient.Adapter),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if !s.customPrv {
		s.previewer = NewPreviewer(nil, s.log)
	}
	return s
}

// Run executes one watch pass over tgts. Failures of one target do not stop
// the others; all of them are returned joined.
func (s *Service) Run(ctx context.Context, tgts []targets.Target) error {
	if s == nil || s.store == nil || s.publisher == nil {
		return fmt.Errorf("watch service is not initialized")
	}
	if len(tgts) == 0 {
		return fmt.Errorf("no targets configured for watching")
	}

	var errs []error
	for _, t := range tgts {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := s.runTarget(ctx, t); err != nil {
			errs = append(errs, err)
			s.log.ErrorObj("target watch failed", "target_error", map[string]any{
				"target_id": t.ID,
				"error":     err.Error(),
			})
		}
	}
	return errors.Join(errs...)
}

type pending struct {
	key      string
	revision string
}

func (s *Service) runTarget(ctx context.Context, t targets.Target) error {
	api := s.adapterFor(t)

	out := httpclient.Get[[]domain.Campaign](ctx, api, listPath(t))
	if err := httpclient.Err(out); err != nil {
		return fmt.Errorf("list campaigns for target %s: %w", t.ID, err)
	}
	list, _ := httpclient.Value(out)

	var (
		changed []domain.Campaign
		marks   []pending
		errs    []error
	)
	for _, c := range list {
		if c.ID == "" {
			continue
		}
		rev, err := Revision(c)
		if err != nil {
			errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
			continue
		}
		key := storage.Key(t.ID, c.ID)
		seen, err := s.store.Seen(key, rev)
		if err != nil {
			errs = append(errs, fmt.Errorf("check revision of campaign %s: %w", c.ID, err))
			continue
		}
		if seen {
			continue
		}
		changed = append(changed, c)
		marks = append(marks, pending{key: key, revision: rev})
	}

	if len(changed) > 0 && s.previewer != nil {
		changed = s.previewer.Enrich(ctx, t, changed)
	}

	published := 0
	for i, c := range changed {
		evt := publishers.NewEvent(t.ID, t.Name, marks[i].revision, c, api.ClockSkew())
		delivered, err := s.publisher.Publish(ctx, evt)
		if err != nil {
			if delivered == 0 {
				errs = append(errs, fmt.Errorf("publish campaign %s: %w", c.ID, err))
				continue
			}
			s.log.WarnObj("campaign event partially published", "publish_partial", map[string]any{
				"target_id":   t.ID,
				"campaign_id": c.ID,
				"delivered":   delivered,
				"error":       err.Error(),
			})
		}
		if err := s.store.Mark(marks[i].key, marks[i].revision); err != nil {
			errs = append(errs, fmt.Errorf("mark campaign %s: %w", c.ID, err))
			continue
		}
		published++
	}

	s.log.InfoObj("target watch completed", "target_result", map[string]any{
		"target_id":     t.ID,
		"campaigns":     len(list),
		"changed":       len(marks),
		"published":     published,
		"clock_skew_ms": api.ClockSkew().Milliseconds(),
	})
	return errors.Join(errs...)
}

// adapterFor returns the cached adapter for t, rebuilding it when the target's
// base URL or token changed.
func (s *Service) adapterFor(t targets.Target) *httpclient.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := httpclient.Config{BaseURL: t.BaseURL, Token: t.Token}
	if a, ok := s.adapters[t.ID]; ok && a.Config() == want {
		return a
	}
	a := t.Adapter(append([]httpclient.Option{httpclient.WithLogger(s.log)}, s.apiOpts...)...)
	s.adapters[t.ID] = a
	return a
}

func listPath(t targets.Target) string {
	path := t.CampaignsPath
	if path == "" {
		path = targets.DefaultCampaignsPath
	}
	size := t.PageSize
	if size <= 0 {
		size = targets.DefaultPageSize
	}
	return path + "?limit=" + strconv.Itoa(size)
}

// Revision fingerprints the backend-owned fields of c. Previews are excluded
// so that landing-page changes alone do not produce new events.
func Revision(c domain.Campaign) (string, error) {
	c.Preview = nil
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode campaign: %w", err)
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}
