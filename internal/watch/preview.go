package watch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/campaign-desk/internal/domain"
	"github.com/samvad-hq/campaign-desk/internal/logger"
	"github.com/samvad-hq/campaign-desk/pkg/httpclient"
	"github.com/samvad-hq/campaign-desk/pkg/targets"
)

const maxHTMLBodyBytes = 1 << 20 // 1 MiB

// Previewer fetches campaign landing pages and extracts OG metadata.
type Previewer struct {
	api *httpclient.Adapter
	log logger.Logger
}

// NewPreviewer builds a previewer. A nil api gets an adapter with no base URL
// and no token, so backend credentials never reach third-party pages.
func NewPreviewer(api *httpclient.Adapter, log logger.Logger) *Previewer {
	if log == nil {
		log = &logger.NopLogger{}
	}
	if api == nil {
		api = httpclient.New(httpclient.Config{}, httpclient.WithLogger(log))
	}
	return &Previewer{api: api, log: log}
}

// Enrich fetches each landing page in turn, pausing t.RequestDelay() between
// fetches. On cancellation it returns the campaigns handled so far.
func (p *Previewer) Enrich(ctx context.Context, t targets.Target, campaigns []domain.Campaign) []domain.Campaign {
	delay := t.RequestDelay()
	out := append([]domain.Campaign(nil), campaigns...)

	fetched := false
	for i, c := range campaigns {
		if !isHTTPURL(c.LandingURL) {
			continue
		}

		if fetched && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return out[:i]
			case <-timer.C:
			}
		}
		select {
		case <-ctx.Done():
			return out[:i]
		default:
		}

		fetched = true
		preview, err := p.fetch(ctx, c.LandingURL)
		if err != nil {
			p.log.WarnObj("landing page preview failed", "preview_error", map[string]any{
				"target_id":   t.ID,
				"campaign_id": c.ID,
				"url":         c.LandingURL,
				"error":       err.Error(),
			})
			continue
		}
		out[i].Preview = preview
	}

	return out
}

func (p *Previewer) fetch(ctx context.Context, pageURL string) (*domain.Preview, error) {
	body, err := resultText(p.api.GetText(ctx, pageURL))
	if err != nil {
		return nil, err
	}
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	meta, err := parseMeta(body)
	if err != nil {
		return nil, err
	}
	meta.ImageURL = resolveURL(meta.ImageURL, pageURL)
	if meta == (domain.Preview{}) {
		return nil, fmt.Errorf("no preview metadata found")
	}
	return &meta, nil
}

func resultText(out httpclient.Outcome[string]) (string, error) {
	if err := httpclient.Err(out); err != nil {
		return "", err
	}
	body, _ := httpclient.Value(out)
	return body, nil
}

func parseMeta(body string) (domain.Preview, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return domain.Preview{}, fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return domain.Preview{
		Title: firstNonEmpty(
			extract(`meta[property="og:title"]`),
			extract(`meta[name="twitter:title"]`),
			doc.Find("title").First().Text(),
		),
		Description: firstNonEmpty(
			extract(`meta[property="og:description"]`),
			extract(`meta[name="description"]`),
		),
		ImageURL: firstNonEmpty(
			extract(`meta[property="og:image"]`),
			extract(`meta[name="twitter:image"]`),
		),
	}, nil
}

// resolveURL makes ref absolute against base; unparseable refs are dropped.
func resolveURL(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
