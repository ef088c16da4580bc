// Package classify maps raw failures from the metadata, transcript and
// language-model subsystems into a typed, retry-aware taxonomy.
package classify

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"media-digest-go/internal/model"
	"media-digest-go/pkg/utils"
)

// Subsystem scopes a set of error kinds
type Subsystem string

const (
	SubsystemMetadata   Subsystem = "metadata"
	SubsystemTranscript Subsystem = "transcript"
	SubsystemLLM        Subsystem = "llm"
	SubsystemPipeline   Subsystem = "pipeline"
)

// Kind is the classified failure kind within a subsystem
type Kind string

// Metadata kinds
const (
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindItemNotFound      Kind = "item_not_found"
	KindItemPrivate       Kind = "item_private"
	KindContainerNotFound Kind = "container_not_found"
	KindAPIKeyInvalid     Kind = "api_key_invalid"
	KindUnknown           Kind = "unknown"
)

// Transcript kinds
const (
	KindNoCaptions          Kind = "no_captions"
	KindVideoPrivate        Kind = "video_private"
	KindVideoNotFound       Kind = "video_not_found"
	KindLanguageUnsupported Kind = "language_unsupported"
	KindProviderError       Kind = "provider_error"
	KindTranscriptionFailed Kind = "transcription_failed"
)

// Language-model kinds
const (
	KindRateLimit      Kind = "rate_limit"
	KindTokenLimit     Kind = "token_limit"
	KindContextTooLong Kind = "context_too_long"
	KindTimeout        Kind = "timeout"
)

// Sentinel errors raised by subsystem clients. The metadata and transcript
// packages re-export them under their own names.
var (
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrNotFound            = errors.New("not found")
	ErrPrivate             = errors.New("private content")
	ErrContainerNotFound   = errors.New("container not found")
	ErrNoCaptions          = errors.New("no captions available")
	ErrLanguageUnsupported = errors.New("no captions in a supported language")
	ErrTranscriptionFailed = errors.New("audio transcription failed")
)

// Error is the classified failure. It is the only error type that crosses
// the orchestrator boundary.
type Error struct {
	Subsystem       Subsystem
	Kind            Kind
	Message         string
	UserMessage     string
	SuggestedAction string
	Retryable       bool
	StatusCode      int
	Provider        string
	Cause           error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s %s (%s): %s", e.Subsystem, e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Subsystem, e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Details converts the classification into its persisted form
func (e *Error) Details(step model.Step) *model.ErrorDetails {
	return &model.ErrorDetails{
		Subsystem:       string(e.Subsystem),
		Kind:            string(e.Kind),
		Message:         e.Message,
		UserMessage:     e.UserMessage,
		SuggestedAction: e.SuggestedAction,
		Retryable:       e.Retryable,
		Provider:        e.Provider,
		FailedStep:      step,
		OccurredAt:      time.Now().UTC(),
	}
}

// statusCoder is implemented by transport errors that carry an HTTP status
type statusCoder interface {
	HTTPStatusCode() int
}

// StatusCode extracts an HTTP status code from anywhere in the error chain
func StatusCode(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}

// Classify maps err into the taxonomy of subsystem. A nil error yields nil,
// and an error that is already classified is returned unchanged.
func Classify(subsystem Subsystem, err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var kind Kind
	switch subsystem {
	case SubsystemMetadata:
		kind = metadataKind(err)
	case SubsystemTranscript:
		kind = transcriptKind(err)
	case SubsystemLLM:
		kind = llmKind(err)
	default:
		kind = KindUnknown
		if utils.IsTimeoutError(err) {
			kind = KindTimeout
		}
	}

	return New(subsystem, kind, err)
}

// New builds a classified error of a known kind
func New(subsystem Subsystem, kind Kind, cause error) *Error {
	guide := guidanceFor(subsystem, kind)
	e := &Error{
		Subsystem:       subsystem,
		Kind:            kind,
		UserMessage:     guide.userMessage,
		SuggestedAction: guide.suggestedAction,
		Retryable:       IsRetryableKind(kind),
		StatusCode:      StatusCode(cause),
		Cause:           cause,
	}
	if cause != nil {
		e.Message = cause.Error()
	} else {
		e.Message = guide.userMessage
	}
	return e
}

// WithProvider returns a copy of e attributed to provider
func (e *Error) WithProvider(provider string) *Error {
	c := *e
	c.Provider = provider
	return &c
}

// IsRetryableKind reports whether automatic backoff may target the kind
func IsRetryableKind(kind Kind) bool {
	switch kind {
	case KindRateLimit, KindQuotaExceeded, KindTimeout:
		return true
	default:
		return false
	}
}

func metadataKind(err error) Kind {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrContainerNotFound):
		return KindContainerNotFound
	case errors.Is(err, ErrPrivate):
		return KindItemPrivate
	case errors.Is(err, ErrNotFound):
		return KindItemNotFound
	}

	msg := err.Error()
	switch code := StatusCode(err); {
	case code == http.StatusForbidden && utils.ContainsAnyFold(msg, []string{"quota"}):
		return KindQuotaExceeded
	case code == http.StatusNotFound:
		return KindItemNotFound
	case (code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden) &&
		utils.ContainsAnyFold(msg, []string{"api key", "apikey", "keyinvalid", "unauthorized"}):
		return KindAPIKeyInvalid
	}

	switch {
	case utils.ContainsAnyFold(msg, []string{"quotaexceeded", "quota exceeded", "dailylimitexceeded"}):
		return KindQuotaExceeded
	case utils.ContainsAnyFold(msg, []string{"api key not valid", "api_key_invalid", "invalid api key"}):
		return KindAPIKeyInvalid
	}
	return KindUnknown
}

func transcriptKind(err error) Kind {
	switch {
	case errors.Is(err, ErrTranscriptionFailed):
		return KindTranscriptionFailed
	case errors.Is(err, ErrNoCaptions):
		return KindNoCaptions
	case errors.Is(err, ErrLanguageUnsupported):
		return KindLanguageUnsupported
	case errors.Is(err, ErrPrivate):
		return KindVideoPrivate
	case errors.Is(err, ErrNotFound):
		return KindVideoNotFound
	}

	code := StatusCode(err)
	switch {
	case code == http.StatusNotFound:
		return KindVideoNotFound
	case code == http.StatusForbidden:
		return KindVideoPrivate
	case code == http.StatusTooManyRequests || code >= 500:
		return KindProviderError
	}

	msg := err.Error()
	switch {
	case utils.ContainsAnyFold(msg, []string{"transcript is disabled", "no captions", "subtitles are disabled"}):
		return KindNoCaptions
	case utils.ContainsAnyFold(msg, []string{"private video", "sign in to confirm"}):
		return KindVideoPrivate
	case utils.ContainsAnyFold(msg, []string{"video unavailable", "not available"}):
		return KindVideoNotFound
	case utils.IsNetworkError(err) || utils.IsTimeoutError(err):
		return KindProviderError
	}
	return KindUnknown
}

func llmKind(err error) Kind {
	msg := err.Error()

	switch code := StatusCode(err); code {
	case http.StatusTooManyRequests:
		if utils.ContainsAnyFold(msg, []string{"quota", "billing", "resource_exhausted"}) {
			return KindQuotaExceeded
		}
		return KindRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAPIKeyInvalid
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	case http.StatusRequestEntityTooLarge:
		return KindContextTooLong
	}

	switch {
	case utils.ContainsAnyFold(msg, []string{"context length", "maximum context", "context_length_exceeded", "too long"}):
		return KindContextTooLong
	case utils.ContainsAnyFold(msg, []string{"max_tokens", "token limit", "maximum tokens"}):
		return KindTokenLimit
	case utils.ContainsAnyFold(msg, []string{"insufficient_quota", "quota", "billing", "resource_exhausted", "budget"}):
		return KindQuotaExceeded
	case utils.ContainsAnyFold(msg, []string{"rate limit", "rate_limit", "too many requests"}):
		return KindRateLimit
	case utils.ContainsAnyFold(msg, []string{"api key", "api_key", "unauthorized", "invalid_api_key"}):
		return KindAPIKeyInvalid
	case utils.IsTimeoutError(err):
		return KindTimeout
	}
	return KindUnknown
}
