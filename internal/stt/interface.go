package stt

import "context"

// Provider defines the interface for speech-to-text providers
type Provider interface {
	// Transcribe transcribes one encoded audio payload and returns the result
	Transcribe(ctx context.Context, audio Audio) (*Result, error)

	// Name returns the name of the provider (e.g., "openai", "google", "fpt")
	Name() string
}

// Audio is one encoded payload handed to a provider.
type Audio struct {
	Name   string // file name sent upstream, e.g. "segment-0001.mp3"
	Format string // mp3, wav, flac or ogg
	Data   []byte
}
