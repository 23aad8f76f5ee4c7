package entities

import "errors"

// Error kinds. Adapters and usecases wrap these with fmt.Errorf("...: %w", ...);
// callers classify failures with errors.Is.
var (
	// ErrConfiguration: missing or invalid model credentials or model choice.
	// Raised before any network call.
	ErrConfiguration = errors.New("configuration error")

	// ErrRouting: the supervisor could not produce one of the two route labels.
	ErrRouting = errors.New("routing error")

	// ErrRetrievalUnavailable: no document index or the query failed.
	// Recovered by the document responder, never surfaced to the user.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrToolFailure: a web search or page fetch failed.
	// Recovered by the research loop as an observation string.
	ErrToolFailure = errors.New("tool failure")

	// ErrProvider: the model call itself failed (quota, malformed response, network).
	ErrProvider = errors.New("provider error")

	// ErrEmptyConversation: an invocation without a trailing user turn.
	ErrEmptyConversation = errors.New("conversation has no user turn")

	// ErrRateLimited is the request-blocking signal of the session boundary.
	ErrRateLimited = errors.New("free question limit reached")

	// ErrUploadLimit: the session exhausted its upload allowance or the file is too large.
	ErrUploadLimit = errors.New("upload limit reached")

	// ErrInvalidUpload: empty file or unsupported format.
	ErrInvalidUpload = errors.New("invalid upload")
)

// ErrorKind returns a short stable name for the kind of err, or "internal".
// A provider failure inside another stage reports as "provider".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrRouting):
		return "routing"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUploadLimit):
		return "upload_limit"
	case errors.Is(err, ErrEmptyConversation), errors.Is(err, ErrInvalidUpload):
		return "invalid_request"
	case errors.Is(err, ErrToolFailure):
		return "tool"
	case errors.Is(err, ErrRetrievalUnavailable):
		return "retrieval"
	default:
		return "internal"
	}
}
