package targets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/campaign-desk/pkg/httpclient"
	"gopkg.in/yaml.v3"
)

// Package targets holds the registry of campaign backends (YAML/JSON).

type Target struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	Token          string `json:"token" yaml:"token"`
	CampaignsPath  string `json:"campaigns_path" yaml:"campaigns_path"`
	PageSize       int    `json:"page_size" yaml:"page_size"`
	RequestDelayMs int    `json:"request_delay_ms" yaml:"request_delay_ms"`
}

type registry struct {
	Targets []Target `json:"targets" yaml:"targets"`
}

const (
	DefaultCampaignsPath  = "/campaigns"
	DefaultPageSize       = 50
	defaultRequestDelayMs = 500
)

var (
	regMu      sync.RWMutex
	currentReg registry
	targetsIdx map[string]Target
)

// All returns a copy of the currently loaded targets.
func All() []Target {
	regMu.RLock()
	defer regMu.RUnlock()

	if len(currentReg.Targets) == 0 {
		return nil
	}

	out := make([]Target, len(currentReg.Targets))
	copy(out, currentReg.Targets)
	return out
}

// ByID returns the target with the given id, if loaded.
func ByID(id string) (Target, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Target{}, false
	}

	regMu.RLock()
	defer regMu.RUnlock()

	t, ok := targetsIdx[id]
	return t, ok
}

// Load reads the targets registry from path and replaces the loaded one.
// Tokens may reference environment variables as $NAME or ${NAME}.
func Load(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("targets file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open targets file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read targets file: %w", err)
	}

	reg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return err
	}

	if len(reg.Targets) == 0 {
		return errors.New("targets file contains no targets entries")
	}

	idx := make(map[string]Target, len(reg.Targets))
	for i := range reg.Targets {
		t := sanitizeTarget(reg.Targets[i])
		if err := validateTarget(t); err != nil {
			return fmt.Errorf("target[%d]: %w", i, err)
		}
		if _, exists := idx[t.ID]; exists {
			return fmt.Errorf("duplicate target id %q", t.ID)
		}
		reg.Targets[i] = t
		idx[t.ID] = t
	}

	regMu.Lock()
	currentReg = reg
	targetsIdx = idx
	regMu.Unlock()

	return nil
}

func parseRegistry(data []byte, ext string) (registry, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg registry
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return registry{}, errors.New("targets file format not recognized (expected YAML or JSON)")
}

func sanitizeTarget(t Target) Target {
	t.ID = strings.TrimSpace(t.ID)
	t.Name = strings.TrimSpace(t.Name)
	t.BaseURL = strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	t.Token = strings.TrimSpace(os.ExpandEnv(t.Token))

	t.CampaignsPath = strings.TrimRight(strings.TrimSpace(t.CampaignsPath), "/")
	if t.CampaignsPath == "" {
		t.CampaignsPath = DefaultCampaignsPath
	}
	if !strings.HasPrefix(t.CampaignsPath, "/") {
		t.CampaignsPath = "/" + t.CampaignsPath
	}
	if t.PageSize <= 0 {
		t.PageSize = DefaultPageSize
	}
	if t.RequestDelayMs <= 0 {
		t.RequestDelayMs = defaultRequestDelayMs
	}

	return t
}

func validateTarget(t Target) error {
	if t.ID == "" {
		return errors.New("id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("name is required for target %q", t.ID)
	}
	if t.BaseURL == "" {
		return fmt.Errorf("base_url is required for target %q", t.ID)
	}
	u, err := url.Parse(t.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url %q for target %q is not an absolute http(s) url", t.BaseURL, t.ID)
	}
	return nil
}

// RequestDelay returns the pause between landing-page fetches for the target.
func (t Target) RequestDelay() time.Duration {
	if t.RequestDelayMs <= 0 {
		return time.Duration(defaultRequestDelayMs) * time.Millisecond
	}
	return time.Duration(t.RequestDelayMs) * time.Millisecond
}

// Adapter builds a request adapter bound to the target's base URL and token.
func (t Target) Adapter(opts ...httpclient.Option) *httpclient.Adapter {
	return httpclient.New(httpclient.Config{BaseURL: t.BaseURL, Token: t.Token}, opts...)
}
