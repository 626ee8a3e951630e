package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/campaign-desk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	campaigns map[string]domain.Campaign
}

func newFakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	b := &fakeBackend{campaigns: map[string]domain.Campaign{
		"c1": {ID: "c1", Name: "Spring", Status: domain.StatusDraft, LandingURL: "https://example.com/spring"},
		"c2": {ID: "c2", Name: "Summer", Status: domain.StatusActive},
	}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return srv
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w.Header().Set("Date", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
	if r.URL.Query().Get("token") != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad token"})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/campaigns")
	switch {
	case path == "" && r.Method == http.MethodGet:
		w.Header().Set("Results-Matching", "2")
		w.Header().Set("Results-Skipped", "0")
		writeJSON(w, http.StatusOK, []domain.Campaign{b.campaigns["c1"], b.campaigns["c2"]})
	case path == "" && r.Method == http.MethodPost:
		var c domain.Campaign
		_ = json.NewDecoder(r.Body).Decode(&c)
		c.ID = "c3"
		b.campaigns[c.ID] = c
		writeJSON(w, http.StatusCreated, c)
	case path == "/export":
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "id,name\nc1,Spring\n")
	case strings.HasSuffix(path, "/creatives"):
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if data, _ := io.ReadAll(f); string(data) != "png-bytes" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unexpected content"})
			return
		}
		writeJSON(w, http.StatusCreated, domain.Creative{ID: "cr1", CampaignID: "c1", FileName: hdr.Filename, URL: "https://cdn.example.com/cr1"})
	default:
		id := strings.TrimPrefix(path, "/")
		c, ok := b.campaigns[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, c)
		case http.MethodPut:
			var next domain.Campaign
			_ = json.NewDecoder(r.Body).Decode(&next)
			b.campaigns[id] = next
			writeJSON(w, http.StatusOK, next)
		case http.MethodPatch:
			var ops []map[string]any
			_ = json.NewDecoder(r.Body).Decode(&ops)
			for _, op := range ops {
				if op["op"] == "replace" && op["path"] == "/status" {
					c.Status, _ = op["value"].(string)
				}
			}
			b.campaigns[id] = c
			writeJSON(w, http.StatusOK, c)
		case http.MethodDelete:
			delete(b.campaigns, id)
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(append([]string{"--base-url", srv.URL + "/api", "--token", "secret"}, args...))
	code := execute(root)
	return out.String(), errOut.String(), code
}

func TestListPrintsTable(t *testing.T) {
	srv := newFakeBackend(t)

	out, errOut, code := run(t, srv, "list", "--limit", "2", "--search", "spr")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Spring")
	assert.Contains(t, out, "Summer")
	assert.Contains(t, out, "showing 1-2 of 2")
}

func TestListJSON(t *testing.T) {
	srv := newFakeBackend(t)

	out, errOut, code := run(t, srv, "--json", "list")
	require.Equal(t, 0, code, errOut)

	var page pageView
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Campaigns, 2)
	require.NotNil(t, page.Total)
	assert.EqualValues(t, 2, *page.Total)
}

func TestGetNotFoundRendersStatus(t *testing.T) {
	srv := newFakeBackend(t)

	_, errOut, code := run(t, srv, "get", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error (HTTP 404)")
}

func TestBadTokenFails(t *testing.T) {
	srv := newFakeBackend(t)

	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs([]string{"--base-url", srv.URL + "/api", "--token", "wrong", "get", "c1"})
	assert.Equal(t, 1, execute(root))
	assert.Contains(t, errOut.String(), "HTTP 401")
}

func TestCreateAndUpdate(t *testing.T) {
	srv := newFakeBackend(t)

	out, errOut, code := run(t, srv, "create", "--name", "Autumn", "--status", "active")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "c3")
	assert.Contains(t, out, "Autumn")

	out, errOut, code = run(t, srv, "--json", "update", "c1", "--name", "Spring 2")
	require.Equal(t, 0, code, errOut)
	var got domain.Campaign
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Spring 2", got.Name)
	assert.Equal(t, "https://example.com/spring", got.LandingURL)
}

func TestCreateRequiresName(t *testing.T) {
	srv := newFakeBackend(t)

	_, errOut, code := run(t, srv, "create")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "name")
}

func TestPatchSetAndFile(t *testing.T) {
	srv := newFakeBackend(t)

	out, errOut, code := run(t, srv, "patch", "c1", "--set", "/status=paused")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "paused")

	file := filepath.Join(t.TempDir(), "patch.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"op":"replace","path":"/status","value":"active"}]`), 0o600))
	out, errOut, code = run(t, srv, "patch", "c1", "-f", file)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "active")

	_, errOut, code = run(t, srv, "patch", "c1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no patch operations")
}

func TestBuildOps(t *testing.T) {
	ops, err := buildOps("", []string{"/name=X"}, []string{"/description"})
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "replace", ops[0].Op)
	assert.Equal(t, "X", ops[0].Value)
	assert.Equal(t, "remove", ops[1].Op)

	_, err = buildOps("", []string{"name=X"}, nil)
	assert.Error(t, err)
	_, err = buildOps("p.json", []string{"/name=X"}, nil)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	srv := newFakeBackend(t)

	out, errOut, code := run(t, srv, "delete", "c2")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "deleted campaign c2")

	_, _, code = run(t, srv, "get", "c2")
	assert.Equal(t, 1, code)
}

func TestUpload(t *testing.T) {
	srv := newFakeBackend(t)
	file := filepath.Join(t.TempDir(), "banner.png")
	require.NoError(t, os.WriteFile(file, []byte("png-bytes"), 0o600))

	out, errOut, code := run(t, srv, "upload", "c1", file)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "uploaded banner.png as creative cr1")
	assert.Contains(t, out, "https://cdn.example.com/cr1")

	_, errOut, code = run(t, srv, "upload", "c1", filepath.Join(t.TempDir(), "missing.png"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "open creative")
}

func TestExport(t *testing.T) {
	srv := newFakeBackend(t)

	out, errOut, code := run(t, srv, "export")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "id,name\nc1,Spring\n", out)

	dest := filepath.Join(t.TempDir(), "out.csv")
	_, errOut, code = run(t, srv, "export", "-o", dest)
	require.Equal(t, 0, code, errOut)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "id,name\nc1,Spring\n", string(data))
}

func TestURL(t *testing.T) {
	srv := newFakeBackend(t)

	out, _, code := run(t, srv, "url")
	require.Equal(t, 0, code)
	assert.Equal(t, srv.URL+"/api/campaigns/export?access_token=secret\n", out)

	out, _, code = run(t, srv, "url", "/campaigns/c1")
	require.Equal(t, 0, code)
	assert.Equal(t, srv.URL+"/api/campaigns/c1?access_token=secret\n", out)
}

func TestSkew(t *testing.T) {
	srv := newFakeBackend(t)

	out, errOut, code := run(t, srv, "--json", "skew")
	require.Equal(t, 0, code, errOut)
	var got map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Greater(t, got["clock_skew_ms"], int64(0))
}

func TestInvalidBaseURL(t *testing.T) {
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs([]string{"--base-url", "ftp://nope", "list"})
	assert.Equal(t, 1, execute(root))
	assert.Contains(t, errOut.String(), "invalid --base-url")
}
