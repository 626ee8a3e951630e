package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

const (
	ContentTypeJSON      = "application/json"
	ContentTypeJSONPatch = "application/json-patch+json"
)

// PatchOperation is one RFC 6902 JSON-Patch operation.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}

type patchOpWire struct {
	Op   string `json:"op"`
	Path string `json:"path"`
	From string `json:"from,omitempty"`
}

type patchOpWithValue struct {
	patchOpWire
	Value any `json:"value"`
}

// MarshalJSON always writes value for add, replace and test, even when it is
// nil, and never for the other ops.
func (op PatchOperation) MarshalJSON() ([]byte, error) {
	w := patchOpWire{Op: op.Op, Path: op.Path, From: op.From}
	switch op.Op {
	case "add", "replace", "test":
		return json.Marshal(patchOpWithValue{patchOpWire: w, Value: op.Value})
	default:
		return json.Marshal(w)
	}
}

// File is the single part uploaded by PostFile.
type File struct {
	Name   string
	Reader io.Reader
}

type getOptions struct {
	autoCancel bool
}

// GetOption tunes a Get call.
type GetOption func(*getOptions)

// WithAutoCancel makes the call take the adapter's auto-cancel slot: the
// previous auto-cancel Get still in flight is cancelled and resolves as
// aborted. Calls without this option are never cancelled by the adapter.
func WithAutoCancel() GetOption {
	return func(o *getOptions) { o.autoCancel = true }
}

// Get fetches path and decodes the JSON body into T.
func Get[T any](ctx context.Context, a *Adapter, path string, opts ...GetOption) Outcome[T] {
	var o getOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if o.autoCancel {
		var release func()
		ctx, release = a.claimAutoCancel(ctx)
		defer release()
	}
	return send(ctx, a, call{method: http.MethodGet, path: path}, jsonDecoder[T]())
}

// GetText fetches path and returns the body as text.
func (a *Adapter) GetText(ctx context.Context, path string) Outcome[string] {
	return send(ctx, a, call{method: http.MethodGet, path: path}, textDecoder)
}

// Post sends body as JSON.
func Post[T any](ctx context.Context, a *Adapter, path string, body any) Outcome[T] {
	return send(ctx, a, jsonCall(http.MethodPost, path, body, ContentTypeJSON), jsonDecoder[T]())
}

// Put sends body as JSON.
func Put[T any](ctx context.Context, a *Adapter, path string, body any) Outcome[T] {
	return send(ctx, a, jsonCall(http.MethodPut, path, body, ContentTypeJSON), jsonDecoder[T]())
}

// Delete issues a DELETE without a body.
func Delete[T any](ctx context.Context, a *Adapter, path string) Outcome[T] {
	return send(ctx, a, call{method: http.MethodDelete, path: path}, jsonDecoder[T]())
}

// Patch sends ops as a JSON-Patch document.
func Patch[T any](ctx context.Context, a *Adapter, path string, ops []PatchOperation) Outcome[T] {
	if ops == nil {
		ops = []PatchOperation{}
	}
	return send(ctx, a, jsonCall(http.MethodPatch, path, ops, ContentTypeJSONPatch), jsonDecoder[T]())
}

// PostFile uploads file as a multipart form with a single "file" field. The
// multipart encoder sets the Content-Type.
func PostFile[T any](ctx context.Context, a *Adapter, path string, file File) Outcome[T] {
	return send(ctx, a, call{method: http.MethodPost, path: path, file: &file}, jsonDecoder[T]())
}

func jsonCall(method, path string, body any, contentType string) call {
	return call{
		method:      method,
		path:        path,
		body:        body,
		hasBody:     true,
		contentType: contentType,
	}
}
