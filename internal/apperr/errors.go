// Package apperr defines the error taxonomy shared by every pipeline stage.
package apperr

import (
	"errors"
	"fmt"
)

// UnsupportedFormatError means the uploaded container/codec could not be decoded.
type UnsupportedFormatError struct {
	Name string
	Err  error
}

func (e *UnsupportedFormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unsupported audio format: %s", e.Name)
	}
	return fmt.Sprintf("unsupported audio format: %s: %v", e.Name, e.Err)
}

func (e *UnsupportedFormatError) Unwrap() error { return e.Err }

// EmptyAudioError means the decoded audio has zero duration.
type EmptyAudioError struct {
	Name string
}

func (e *EmptyAudioError) Error() string {
	if e.Name == "" {
		return "audio has no content"
	}
	return fmt.Sprintf("audio has no content: %s", e.Name)
}

// InvalidConfigurationError names a configuration key with an unusable value.
type InvalidConfigurationError struct {
	Key    string
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

// ChunkError means one segment could not be cut out of the normalized audio.
type ChunkError struct {
	Segment int
	Err     error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("segment %d could not be materialized: %v", e.Segment, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// TranscriptionServiceError carries the upstream failure for one segment.
type TranscriptionServiceError struct {
	Provider string
	Segment  int
	Err      error
}

func (e *TranscriptionServiceError) Error() string {
	return fmt.Sprintf("transcription failed (provider %s, segment %d): %v", e.Provider, e.Segment, e.Err)
}

func (e *TranscriptionServiceError) Unwrap() error { return e.Err }

// GenerationServiceError carries the upstream failure for one text-generation call.
type GenerationServiceError struct {
	Provider string
	Kind     string
	Err      error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("text generation failed (provider %s, task %s): %v", e.Provider, e.Kind, e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed write or read against the record store.
type PersistenceError struct {
	Driver string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("record store (%s): %v", e.Driver, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// StatusError is a non-success reply from an upstream HTTP API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
}

// Stage names the pipeline stage an error belongs to, for user-facing messages.
func Stage(err error) string {
	var (
		unsupported *UnsupportedFormatError
		empty       *EmptyAudioError
		chunk       *ChunkError
		invalid     *InvalidConfigurationError
		transcribe  *TranscriptionServiceError
		generate    *GenerationServiceError
		persist     *PersistenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unsupported):
		return "normalize"
	case errors.As(err, &empty), errors.As(err, &chunk):
		return "chunk"
	case errors.As(err, &invalid):
		return "config"
	case errors.As(err, &transcribe):
		return "transcribe"
	case errors.As(err, &generate):
		return "post-process"
	case errors.As(err, &persist):
		return "persist"
	default:
		return "pipeline"
	}
}

// IsInputError reports whether err is caused by the caller's input or
// configuration rather than by an upstream service.
func IsInputError(err error) bool {
	var (
		unsupported *UnsupportedFormatError
		empty       *EmptyAudioError
		invalid     *InvalidConfigurationError
	)
	return errors.As(err, &unsupported) || errors.As(err, &empty) || errors.As(err, &invalid)
}
