package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

// Config identifies one backend target. BaseURL carries no trailing slash.
type Config struct {
	BaseURL string
	Token   string
}

// Adapter performs single HTTP calls against one backend and normalizes every
// result, including transport errors and cancellations, into an Outcome.
// It is safe for concurrent use.
type Adapter struct {
	cfg    Config
	client *resty.Client
	log    Logger
	now    func() time.Time

	// skew holds the last observed clock skew as a time.Duration.
	skew atomic.Int64

	autoMu     sync.Mutex
	autoSeq    uint64
	autoID     uint64
	autoCancel context.CancelFunc
}

type options struct {
	transport http.RoundTripper
	client    *resty.Client
	log       Logger
	now       func() time.Time
}

// Option customizes an Adapter at construction.
type Option func(*options)

// WithTransport replaces the underlying http.RoundTripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithRestyClient uses c instead of a fresh resty client.
func WithRestyClient(c *resty.Client) Option {
	return func(o *options) { o.client = c }
}

// WithLogger sets the sink for per-call debug lines.
func WithLogger(log Logger) Option {
	return func(o *options) { o.log = log }
}

// WithClock overrides the local clock used for skew computation.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds an Adapter for cfg.
func New(cfg Config, opts ...Option) *Adapter {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	log := ensureLogger(o.log)
	client := o.client
	if client == nil {
		client = newAdapterClient(o.transport, log)
	} else if o.transport != nil {
		client.SetTransport(o.transport)
	}
	now := o.now
	if now == nil {
		now = time.Now
	}

	return &Adapter{
		cfg:    cfg,
		client: client,
		log:    log,
		now:    now,
	}
}

// Config returns the configuration the adapter was built with.
func (a *Adapter) Config() Config { return a.cfg }

// ClockSkew returns the last computed local-minus-server clock difference, or
// 0 if no response has carried a parseable Date header yet.
func (a *Adapter) ClockSkew() time.Duration {
	return time.Duration(a.skew.Load())
}

const fileField = "file"

// call describes one request before it is sent.
type call struct {
	method      string
	path        string
	body        any
	hasBody     bool
	contentType string
	file        *File
}

type decoder[T any] struct {
	kind string
	fn   func([]byte) (T, error)
}

func jsonDecoder[T any]() decoder[T] {
	return decoder[T]{
		kind: "json",
		fn: func(body []byte) (T, error) {
			var v T
			err := json.Unmarshal(body, &v)
			return v, err
		},
	}
}

var errInvalidText = errors.New("body is not valid UTF-8")

var textDecoder = decoder[string]{
	kind: "text",
	fn: func(body []byte) (string, error) {
		if !utf8.Valid(body) {
			return "", errInvalidText
		}
		return string(body), nil
	},
}

// send issues c and classifies whatever happens into an Outcome.
func send[T any](ctx context.Context, a *Adapter, c call, dec decoder[T]) (out Outcome[T]) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = &Failure[T]{Kind: FailureTransport, Message: fmt.Sprintf("request panicked: %v", r)}
		}
		logSettled(a, c, started, out)
	}()

	if err := ctx.Err(); err != nil {
		return transportFailure[T](ctx, err)
	}
	req, err := a.newRequest(ctx, c)
	if err != nil {
		return transportFailure[T](ctx, err)
	}

	resp, err := req.Execute(c.method, a.requestURL(c.path))
	if err != nil {
		return transportFailure[T](ctx, err)
	}
	// Transports are free to ignore the context, so check it again.
	if err := ctx.Err(); err != nil {
		return transportFailure[T](ctx, err)
	}

	return classify(a, resp.StatusCode(), statusText(resp), resp.Header(), resp.Body(), dec)
}

func (a *Adapter) newRequest(ctx context.Context, c call) (*resty.Request, error) {
	req := a.client.R().SetContext(ctx)
	switch {
	case c.file != nil:
		if c.file.Reader == nil {
			return nil, fmt.Errorf("file %q has no content", c.file.Name)
		}
		req.SetFileReader(fileField, c.file.Name, c.file.Reader)
	case c.hasBody:
		payload, err := json.Marshal(c.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		req.SetHeader("Content-Type", c.contentType).SetBody(payload)
	}
	return req, nil
}

// transportFailure converts an error raised before a response arrived.
func transportFailure[T any](ctx context.Context, err error) *Failure[T] {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return &Failure[T]{Kind: FailureAborted, Message: MessageAborted}
	}

	msg := ""
	if err != nil {
		// url.Error embeds the request URL, which carries the token.
		var uerr *url.Error
		if errors.As(err, &uerr) && uerr.Err != nil {
			err = uerr.Err
		}
		msg = strings.TrimSpace(err.Error())
	}
	if msg == "" {
		msg = MessageNetworkFailed
	}
	return &Failure[T]{Kind: FailureTransport, Message: msg}
}

// classify maps a received response onto an Outcome and refreshes the skew cache.
func classify[T any](a *Adapter, status int, text string, header http.Header, body []byte, dec decoder[T]) Outcome[T] {
	meta, skew, skewOK := parseMetadata(header, a.now())
	if skewOK {
		a.skew.Store(int64(skew))
	}

	if status == http.StatusNoContent {
		return &Success[T]{Status: status, Metadata: meta}
	}

	v, err := dec.fn(body)
	if err != nil {
		return &Failure[T]{
			Kind:       FailureDecode,
			Message:    "failed to parse " + dec.kind + " response",
			Status:     &status,
			StatusText: text,
			Metadata:   meta,
		}
	}

	if status >= 200 && status <= 299 {
		return &Success[T]{Status: status, Data: &v, Metadata: meta}
	}

	return &Failure[T]{
		Kind:       FailureHTTPStatus,
		Message:    fmt.Sprintf("request failed: %d %s", status, text),
		Status:     &status,
		StatusText: text,
		Data:       &v,
		Metadata:   meta,
	}
}

// statusText returns the reason phrase the server sent, falling back to the
// canonical text for the code.
func statusText(resp *resty.Response) string {
	code := resp.StatusCode()
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status(), strconv.Itoa(code)))
	if text == "" {
		text = http.StatusText(code)
	}
	return text
}

// claimAutoCancel takes the adapter's single auto-cancel slot, cancelling the
// call that held it. The returned release func frees the slot if this call
// still owns it and always cancels the derived context.
func (a *Adapter) claimAutoCancel(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	a.autoMu.Lock()
	if a.autoCancel != nil {
		a.autoCancel()
	}
	a.autoSeq++
	id := a.autoSeq
	a.autoID = id
	a.autoCancel = cancel
	a.autoMu.Unlock()

	return ctx, func() {
		a.autoMu.Lock()
		if a.autoID == id {
			a.autoCancel = nil
		}
		a.autoMu.Unlock()
		cancel()
	}
}

func logSettled[T any](a *Adapter, c call, started time.Time, out Outcome[T]) {
	fields := map[string]any{
		"method":     c.method,
		"path":       c.path,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}
	switch o := out.(type) {
	case *Success[T]:
		fields["ok"] = true
		fields["status"] = o.Status
	case *Failure[T]:
		fields["ok"] = false
		fields["failure"] = o.Kind.String()
		fields["message"] = o.Message
		if o.Status != nil {
			fields["status"] = *o.Status
		}
	}
	a.log.DebugObj("http call settled", "http_call", fields)
}
