package domain

import "time"

// CachedResponse wraps any external-API result.
// ErrorMessage is non-empty iff Success is false.
type CachedResponse[T any] struct {
	Payload          T      `json:"payload"`
	Success          bool   `json:"success"`
	SourceName       string `json:"sourceName"`
	FetchedAtEpochMs int64  `json:"fetchedAtEpochMs"`
	Cached           bool   `json:"cached"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
}

// NewCachedResponse creates a successful response.
func NewCachedResponse[T any](source string, payload T, fetchedAt time.Time, cached bool) *CachedResponse[T] {
	return &CachedResponse[T]{
		Payload:          payload,
		Success:          true,
		SourceName:       source,
		FetchedAtEpochMs: fetchedAt.UnixMilli(),
		Cached:           cached,
	}
}

// NewFailedResponse creates an unsuccessful response carrying err's message.
func NewFailedResponse[T any](source string, err error, at time.Time) *CachedResponse[T] {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &CachedResponse[T]{
		Success:          false,
		SourceName:       source,
		FetchedAtEpochMs: at.UnixMilli(),
		ErrorMessage:     msg,
	}
}

// FetchedAt returns the fetch time.
func (r *CachedResponse[T]) FetchedAt() time.Time {
	return time.UnixMilli(r.FetchedAtEpochMs)
}
