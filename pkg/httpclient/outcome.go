package httpclient

// Outcome is the normalized result of one adapter call. It is always either a
// *Success[T] or a *Failure[T]; no other implementations exist.
type Outcome[T any] interface {
	OK() bool
	Meta() Metadata
	sealed(T)
}

// Success is a response with a 2xx status whose body decoded (or a 204).
type Success[T any] struct {
	Status int

	// Data is nil for 204 No Content.
	Data     *T
	Metadata Metadata
}

func (*Success[T]) OK() bool         { return true }
func (s *Success[T]) Meta() Metadata { return s.Metadata }
func (*Success[T]) sealed(T)         {}

// FailureKind classifies why a call did not succeed.
type FailureKind int

const (
	// FailureTransport means no response was received.
	FailureTransport FailureKind = iota + 1
	// FailureAborted means the call's context was cancelled, including by auto-cancel.
	FailureAborted
	// FailureHTTPStatus means the server answered outside 2xx.
	FailureHTTPStatus
	// FailureDecode means the body could not be decoded as the expected kind.
	FailureDecode
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureAborted:
		return "aborted"
	case FailureHTTPStatus:
		return "http_status"
	case FailureDecode:
		return "decode"
	default:
		return "unknown"
	}
}

const (
	MessageAborted       = "Request aborted"
	MessageNetworkFailed = "network request failed"
)

// Failure describes a call that did not produce a usable 2xx result.
type Failure[T any] struct {
	Kind    FailureKind
	Message string

	// Status is nil for transport failures and cancellations.
	Status     *int
	StatusText string

	// Data holds the decoded error payload of a non-2xx response, when it decoded.
	Data     *T
	Metadata Metadata
}

func (*Failure[T]) OK() bool         { return false }
func (f *Failure[T]) Meta() Metadata { return f.Metadata }
func (*Failure[T]) sealed(T)         {}

// Error lets callers return a Failure as an error.
func (f *Failure[T]) Error() string { return f.Message }

// StatusCode returns the HTTP status or 0 when none was received.
func (f *Failure[T]) StatusCode() int {
	if f == nil || f.Status == nil {
		return 0
	}
	return *f.Status
}

// Aborted reports whether the call was cancelled.
func (f *Failure[T]) Aborted() bool { return f != nil && f.Kind == FailureAborted }

// Err returns nil for a success and the *Failure[T] otherwise.
func Err[T any](o Outcome[T]) error {
	if f, ok := o.(*Failure[T]); ok {
		return f
	}
	return nil
}

// Value returns the decoded body of a success. ok is false for failures and
// for bodiless successes.
func Value[T any](o Outcome[T]) (v T, ok bool) {
	s, isSuccess := o.(*Success[T])
	if !isSuccess || s.Data == nil {
		return v, false
	}
	return *s.Data, true
}
