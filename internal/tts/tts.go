// Package tts defines the interface for text-to-speech synthesis.
//
// Nagato speaks every response it composes. A Synthesizer renders the text
// to an audio clip which the speech queue then plays through the local
// audio player.
package tts

import "context"

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "fr", "es") to select the voice.
	Language string

	// Voice overrides automatic language-based voice selection.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier ("openai" or "piper").
	Name() string

	// Synthesize renders text to a playable audio clip.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the encoded clip (WAV for Piper, MP3 by default for OpenAI).
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string

	// SampleRate is the audio sample rate in Hz, when known.
	SampleRate int

	// Channels is the number of audio channels, when known.
	Channels int
}

// Extension returns the file extension for a clip's content type.
func (r *SynthesizeResult) Extension() string {
	switch r.ContentType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/opus", "audio/ogg":
		return ".ogg"
	case "audio/aac":
		return ".aac"
	case "audio/flac":
		return ".flac"
	default:
		return ".wav"
	}
}
