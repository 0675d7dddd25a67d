// Package tts provides text-to-speech functionality.
package tts

import (
	"context"
)

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice    string  // Voice identifier
	Language string  // Language code
	Speed    float64 // Speed multiplier
	Format   string  // Output format, defaults to mp3_44100_128
}

// Synthesis is the result of text-to-speech conversion.
type Synthesis struct {
	Audio  []byte // Encoded audio bytes
	Format string // Format of the audio
}
