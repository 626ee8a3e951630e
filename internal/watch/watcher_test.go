package watch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/samvad-hq/campaign-desk/internal/domain"
	"github.com/samvad-hq/campaign-desk/internal/storage"
	"github.com/samvad-hq/campaign-desk/pkg/publishers"
	"github.com/samvad-hq/campaign-desk/pkg/targets"
)

// fakePublisher records published events and can inject errors.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.events = append(f.events, evt)
	return 1, nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// backend serves a mutable campaign list plus a landing page.
type backend struct {
	mu        sync.Mutex
	campaigns []domain.Campaign
	status    int
	queries   []string
	landing   []string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch r.URL.Path {
	case "/landing":
		b.landing = append(b.landing, r.URL.RawQuery)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><meta property="og:title" content="Spring Sale"><meta property="og:image" content="/img/spring.png"></head></html>`))
	case "/api/campaigns":
		b.queries = append(b.queries, r.URL.RawQuery)
		status := b.status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(b.campaigns)
	default:
		http.NotFound(w, r)
	}
}

func (b *backend) setCampaigns(list []domain.Campaign) {
	b.mu.Lock()
	b.campaigns = list
	b.mu.Unlock()
}

func newBoltStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewStore("bbolt", filepath.Join(t.TempDir(), "revisions.db"), storage.Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunPublishesEachRevisionOnce(t *testing.T) {
	be := &backend{}
	srv := httptest.NewServer(be)
	defer srv.Close()

	be.setCampaigns([]domain.Campaign{
		{ID: "1", Name: "Spring", Status: domain.StatusActive, LandingURL: srv.URL + "/landing"},
		{ID: "2", Name: "Summer", Status: domain.StatusDraft},
	})

	pub := &fakePublisher{}
	svc := NewService(newBoltStore(t), pub)
	tg := targets.Target{ID: "eu", Name: "EU", BaseURL: srv.URL + "/api", Token: "tok", CampaignsPath: "/campaigns", PageSize: 20}

	if err := svc.Run(context.Background(), []targets.Target{tg}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pub.count() != 2 {
		t.Fatalf("expected 2 events, got %d", pub.count())
	}

	evt := pub.events[0]
	if evt.Kind != publishers.KindCampaignChanged || evt.TargetID != "eu" || evt.TargetName != "EU" || evt.ID == "" {
		t.Fatalf("unexpected event envelope %#v", evt)
	}
	if evt.Campaign.Preview == nil || evt.Campaign.Preview.Title != "Spring Sale" {
		t.Fatalf("expected landing preview, got %#v", evt.Campaign.Preview)
	}
	if evt.Campaign.Preview.ImageURL != srv.URL+"/img/spring.png" {
		t.Fatalf("image url not resolved: %s", evt.Campaign.Preview.ImageURL)
	}
	if len(be.queries) != 1 || be.queries[0] != "limit=20&token=tok" {
		t.Fatalf("unexpected list queries %v", be.queries)
	}
	if len(be.landing) != 1 || be.landing[0] != "" {
		t.Fatalf("landing page must be fetched without token, got %v", be.landing)
	}

	if err := svc.Run(context.Background(), []targets.Target{tg}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if pub.count() != 2 {
		t.Fatalf("unchanged campaigns must not be republished, got %d events", pub.count())
	}

	be.setCampaigns([]domain.Campaign{
		{ID: "1", Name: "Spring", Status: domain.StatusActive, LandingURL: srv.URL + "/landing"},
		{ID: "2", Name: "Summer", Status: domain.StatusActive},
	})
	if err := svc.Run(context.Background(), []targets.Target{tg}); err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if pub.count() != 3 || pub.events[2].Campaign.ID != "2" {
		t.Fatalf("expected one event for the changed campaign, got %d", pub.count())
	}
}

func TestRunJoinsTargetErrorsAndContinues(t *testing.T) {
	broken := &backend{status: http.StatusInternalServerError}
	brokenSrv := httptest.NewServer(broken)
	defer brokenSrv.Close()

	healthy := &backend{}
	healthy.setCampaigns([]domain.Campaign{{ID: "1", Name: "Only"}})
	healthySrv := httptest.NewServer(healthy)
	defer healthySrv.Close()

	pub := &fakePublisher{}
	svc := NewService(newBoltStore(t), pub)

	err := svc.Run(context.Background(), []targets.Target{
		{ID: "down", Name: "Down", BaseURL: brokenSrv.URL + "/api"},
		{ID: "up", Name: "Up", BaseURL: healthySrv.URL + "/api"},
	})
	if err == nil || !strings.Contains(err.Error(), "target down") {
		t.Fatalf("expected joined error naming target down, got %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("healthy target should still publish, got %d", pub.count())
	}
}

func TestRunRetriesWhenPublishFails(t *testing.T) {
	be := &backend{}
	be.setCampaigns([]domain.Campaign{{ID: "1", Name: "Retry"}})
	srv := httptest.NewServer(be)
	defer srv.Close()

	pub := &fakePublisher{err: errors.New("sink down")}
	svc := NewService(newBoltStore(t), pub, WithPreviewer(nil))
	tg := targets.Target{ID: "eu", Name: "EU", BaseURL: srv.URL + "/api"}

	if err := svc.Run(context.Background(), []targets.Target{tg}); err == nil {
		t.Fatalf("expected publish error")
	}

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	if err := svc.Run(context.Background(), []targets.Target{tg}); err != nil {
		t.Fatalf("Run after recovery: %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("unpublished revision must be retried, got %d events", pub.count())
	}
}

func TestRunRequiresTargets(t *testing.T) {
	svc := NewService(newBoltStore(t), &fakePublisher{})
	if err := svc.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error without targets")
	}

	var nilSvc *Service
	if err := nilSvc.Run(context.Background(), []targets.Target{{ID: "x"}}); err == nil {
		t.Fatalf("expected error for uninitialized service")
	}
}

func TestRevisionIgnoresPreview(t *testing.T) {
	c := domain.Campaign{ID: "1", Name: "A"}
	withPreview := c
	withPreview.Preview = &domain.Preview{Title: "landing"}

	r1, err := Revision(c)
	if err != nil {
		t.Fatalf("Revision: %v", err)
	}
	r2, _ := Revision(withPreview)
	if r1 != r2 {
		t.Fatalf("preview must not change the revision")
	}

	c.Name = "B"
	r3, _ := Revision(c)
	if r3 == r1 {
		t.Fatalf("name change must change the revision")
	}
	if len(r1) != 40 {
		t.Fatalf("expected hex sha1, got %q", r1)
	}
}
