package targets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samvad-hq/campaign-desk/pkg/httpclient"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write targets file: %v", err)
	}
	return file
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	t.Setenv("EU_TOKEN", "secret")
	file := writeFile(t, "targets.yaml", `
targets:
  - id: eu
    name: " EU backend "
    base_url: https://eu.example.com/api/
    token: "${EU_TOKEN}"
  - id: us
    name: US backend
    base_url: https://us.example.com/api
    campaigns_path: promos/
    page_size: 10
    request_delay_ms: 750
`)

	if err := Load(file); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := len(All()); got != 2 {
		t.Fatalf("expected 2 targets, got %d", got)
	}

	eu, ok := ByID("eu")
	if !ok {
		t.Fatalf("expected target eu to be loaded")
	}
	if eu.Name != "EU backend" {
		t.Fatalf("unexpected name %q", eu.Name)
	}
	if eu.BaseURL != "https://eu.example.com/api" {
		t.Fatalf("trailing slash not trimmed: %s", eu.BaseURL)
	}
	if eu.Token != "secret" {
		t.Fatalf("token env not expanded: %q", eu.Token)
	}
	if eu.CampaignsPath != DefaultCampaignsPath || eu.PageSize != DefaultPageSize {
		t.Fatalf("defaults not applied: %+v", eu)
	}
	if eu.RequestDelay() != 500*time.Millisecond {
		t.Fatalf("unexpected default delay %v", eu.RequestDelay())
	}

	us, _ := ByID("us")
	if us.CampaignsPath != "/promos" {
		t.Fatalf("unexpected campaigns_path %q", us.CampaignsPath)
	}
	if us.PageSize != 10 || us.RequestDelay() != 750*time.Millisecond {
		t.Fatalf("explicit values lost: %+v", us)
	}
}

func TestLoadJSON(t *testing.T) {
	file := writeFile(t, "targets.json", `{"targets":[{"id":"local","name":"Local","base_url":"http://localhost:8080"}]}`)
	if err := Load(file); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, ok := ByID("local"); !ok {
		t.Fatalf("expected target local")
	}
}

func TestLoadRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"duplicate": `
targets:
  - {id: a, name: A, base_url: "https://a.example"}
  - {id: a, name: B, base_url: "https://b.example"}
`,
		"relative url": `
targets:
  - {id: a, name: A, base_url: "/api"}
`,
		"missing name": `
targets:
  - {id: a, base_url: "https://a.example"}
`,
		"empty": `targets: []`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			file := writeFile(t, "targets.yaml", content)
			if err := Load(file); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}

	if err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestTargetAdapterCarriesToken(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tg := Target{ID: "t", BaseURL: srv.URL, Token: "abc"}
	out := httpclient.Get[map[string]any](context.Background(), tg.Adapter(), "/campaigns")
	if !out.OK() {
		t.Fatalf("expected success, got %#v", out)
	}
	if query != "token=abc" {
		t.Fatalf("unexpected query %q", query)
	}
}
