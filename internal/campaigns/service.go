package campaigns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/samvad-hq/campaign-desk/internal/domain"
	"github.com/samvad-hq/campaign-desk/internal/logger"
	"github.com/samvad-hq/campaign-desk/pkg/httpclient"
)

// ErrBusy is returned when a change is requested while another one is saving.
var ErrBusy = errors.New("campaigns: another change is still being saved")

const (
	DefaultBasePath = "/campaigns"
	DefaultLimit    = 50
)

// Query selects one page of campaigns.
type Query struct {
	Offset int
	Limit  int
	Search string
}

func (q Query) path(base string) string {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	v := url.Values{}
	v.Set("offset", strconv.Itoa(offset))
	v.Set("limit", strconv.Itoa(limit))
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("search", s)
	}
	return base + "?" + v.Encode()
}

// Input is the payload for creating a campaign.
type Input struct {
	Name        string `json:"name"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
	LandingURL  string `json:"landing_url,omitempty"`
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("campaign name is required")
	}
	if in.Status != "" && !domain.ValidStatus(in.Status) {
		return fmt.Errorf("unknown campaign status %q", in.Status)
	}
	return nil
}

// Service drives the campaign screens: it calls the backend through one
// adapter and mirrors every result into a Store.
type Service struct {
	api      *httpclient.Adapter
	store    *Store
	log      logger.Logger
	basePath string
	saving   atomic.Bool
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithBasePath overrides the collection path (default /campaigns).
func WithBasePath(p string) ServiceOption {
	return func(s *Service) {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			s.basePath = p
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService wires a service to api. A nil store gets a fresh one.
func NewService(api *httpclient.Adapter, store *Store, opts ...ServiceOption) *Service {
	if store == nil {
		store = NewStore()
	}
	s := &Service{
		api:      api,
		store:    store,
		log:      &logger.NopLogger{},
		basePath: DefaultBasePath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Store returns the state the service writes to.
func (s *Service) Store() *Store { return s.store }

// ListPath is the request path Refresh uses for q.
func (s *Service) ListPath(q Query) string { return q.path(s.basePath) }

func (s *Service) itemPath(id string) string {
	return s.basePath + "/" + url.PathEscape(id)
}

// Refresh loads one page into the store. A newer Refresh cancels an older one
// still in flight; the superseded call returns its aborted failure and leaves
// the state alone.
func (s *Service) Refresh(ctx context.Context, q Query) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.store.update(func(st *State) { st.Loading = true })

	out := httpclient.Get[[]domain.Campaign](ctx, s.api, s.ListPath(q), httpclient.WithAutoCancel())
	if f, ok := out.(*httpclient.Failure[[]domain.Campaign]); ok && f.Aborted() {
		if ctx.Err() != nil {
			s.store.update(func(st *State) { st.Loading = false })
		}
		return f
	}

	meta := out.Meta()
	s.store.update(func(st *State) {
		st.Loading = false
		st.ClockSkew = s.api.ClockSkew()
		if !out.OK() {
			st.Error = httpclient.Err(out).Error()
			return
		}
		list, _ := httpclient.Value(out)
		st.Campaigns = list
		st.Total = meta.Total
		st.Skipped = meta.Skipped
		st.NextLink = ""
		if meta.NextLink != nil {
			st.NextLink = *meta.NextLink
		}
		st.Error = ""
	})

	if err := httpclient.Err(out); err != nil {
		s.log.WarnObj("campaign refresh failed", "refresh", map[string]any{"query": q, "error": err.Error()})
		return err
	}
	return nil
}

// Get fetches one campaign and caches it in the store.
func (s *Service) Get(ctx context.Context, id string) (domain.Campaign, error) {
	out := httpclient.Get[domain.Campaign](ctx, s.api, s.itemPath(id))
	c, err := result(out)
	if err != nil {
		return domain.Campaign{}, err
	}
	s.store.update(func(st *State) { st.upsert(c) })
	return c, nil
}

// Create posts in and appends the created campaign to the store.
func (s *Service) Create(ctx context.Context, in Input) (domain.Campaign, error) {
	if err := in.validate(); err != nil {
		return domain.Campaign{}, err
	}
	if err := s.begin(); err != nil {
		return domain.Campaign{}, err
	}

	out := httpclient.Post[domain.Campaign](ctx, s.api, s.basePath, in)
	c, err := result(out)
	s.end(err, func(st *State) { st.upsert(c) })
	return c, err
}

// Update replaces c on the backend.
func (s *Service) Update(ctx context.Context, c domain.Campaign) (domain.Campaign, error) {
	if c.ID == "" {
		return domain.Campaign{}, fmt.Errorf("campaign id is required")
	}
	if c.Status != "" && !domain.ValidStatus(c.Status) {
		return domain.Campaign{}, fmt.Errorf("unknown campaign status %q", c.Status)
	}
	if err := s.begin(); err != nil {
		return domain.Campaign{}, err
	}

	payload := c
	payload.Preview = nil
	out := httpclient.Put[domain.Campaign](ctx, s.api, s.itemPath(c.ID), payload)
	updated, err := result(out)
	s.end(err, func(st *State) { st.upsert(updated) })
	return updated, err
}

// Patch sends ops for id. When id is cached the ops are applied locally first
// and rolled back if the backend rejects them.
func (s *Service) Patch(ctx context.Context, id string, ops []httpclient.PatchOperation) (domain.Campaign, error) {
	if id == "" {
		return domain.Campaign{}, fmt.Errorf("campaign id is required")
	}
	if err := s.begin(); err != nil {
		return domain.Campaign{}, err
	}

	prev, cached := s.store.Snapshot().Find(id)
	applied := false
	if cached {
		next, err := applyPatch(prev, ops)
		if err != nil {
			s.log.WarnObj("local patch apply failed", "patch", map[string]any{"id": id, "error": err.Error()})
		} else {
			s.store.update(func(st *State) { st.upsert(next) })
			applied = true
		}
	}

	out := httpclient.Patch[domain.Campaign](ctx, s.api, s.itemPath(id), ops)
	patched, err := result(out)
	if err != nil {
		if applied {
			s.store.update(func(st *State) { st.upsert(prev) })
		}
		s.end(err, nil)
		return domain.Campaign{}, err
	}
	s.end(nil, func(st *State) { st.upsert(patched) })
	return patched, nil
}

// Delete removes id on the backend and from the store.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("campaign id is required")
	}
	if err := s.begin(); err != nil {
		return err
	}

	out := httpclient.Delete[json.RawMessage](ctx, s.api, s.itemPath(id))
	err := httpclient.Err(out)
	s.end(err, func(st *State) {
		if st.remove(id) && st.Total != nil && *st.Total > 0 {
			total := *st.Total - 1
			st.Total = &total
		}
	})
	return err
}

// UploadCreative attaches file to campaign id.
func (s *Service) UploadCreative(ctx context.Context, id string, file httpclient.File) (domain.Creative, error) {
	if id == "" {
		return domain.Creative{}, fmt.Errorf("campaign id is required")
	}
	if err := s.begin(); err != nil {
		return domain.Creative{}, err
	}

	out := httpclient.PostFile[domain.Creative](ctx, s.api, s.itemPath(id)+"/creatives", file)
	cr, err := result(out)
	s.end(err, nil)
	return cr, err
}

// Export returns the CSV export of all campaigns.
func (s *Service) Export(ctx context.Context) (string, error) {
	return result(s.api.GetText(ctx, s.basePath+"/export"))
}

// ExportURL is a shareable link to the CSV export.
func (s *Service) ExportURL() string {
	return s.api.ComposeURL(s.basePath + "/export")
}

func (s *Service) begin() error {
	if !s.saving.CompareAndSwap(false, true) {
		return ErrBusy
	}
	s.store.update(func(st *State) { st.Saving = true })
	return nil
}

// end releases the saving guard, recording err or applying onSuccess.
func (s *Service) end(err error, onSuccess func(*State)) {
	s.store.update(func(st *State) {
		st.Saving = false
		if err != nil {
			st.Error = err.Error()
			return
		}
		st.Error = ""
		if onSuccess != nil {
			onSuccess(st)
		}
	})
	s.saving.Store(false)
}

func result[T any](out httpclient.Outcome[T]) (T, error) {
	if err := httpclient.Err(out); err != nil {
		var zero T
		return zero, err
	}
	v, _ := httpclient.Value(out)
	return v, nil
}
