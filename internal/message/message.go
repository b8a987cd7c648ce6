// Package message defines the data types flowing between transports and the
// command pipeline.
package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request is an incoming command from any transport.
type Request struct {
	// ID is a unique identifier for this command (UUID). Assigned if empty.
	ID string `json:"id"`

	// Source identifies the sender (e.g., "console", "phone-alice").
	Source string `json:"source"`

	// Text is the typed command. Ignored when Audio is present.
	Text string `json:"text,omitempty"`

	// Audio is a raw recording of a spoken command. Nil for typed input.
	Audio []byte `json:"audio,omitempty"`

	// ContentType is the MIME type of Audio (e.g., "audio/wav").
	ContentType string `json:"content_type,omitempty"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`
}

// HasAudio returns true if the request carries a recording.
func (r *Request) HasAudio() bool {
	return len(r.Audio) > 0
}

// EnsureID assigns a UUID and timestamp when the transport did not.
func (r *Request) EnsureID() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
}

// AssistantResponse is the terminal artifact of one command cycle.
//
// A response with Success=false never carries ActionTaken; use Succeeded and
// Failed to build one.
type AssistantResponse struct {
	Message       string `json:"message"`
	ActionTaken   string `json:"action_taken,omitempty"`
	Success       bool   `json:"success"`
	VoiceFeedback string `json:"voice_feedback,omitempty"`
}

// Succeeded builds a successful response. voice is the exact text spoken
// aloud, or empty when voice output is disabled.
func Succeeded(msg, action, voice string) AssistantResponse {
	return AssistantResponse{Message: msg, ActionTaken: action, Success: true, VoiceFeedback: voice}
}

// Failed builds a failed response. ActionTaken is always empty.
func Failed(msg, voice string) AssistantResponse {
	return AssistantResponse{Message: msg, Success: false, VoiceFeedback: voice}
}

// SpokenForm is what the assistant says for this response: the message,
// followed by the action label when one is present.
func (r AssistantResponse) SpokenForm() string {
	if r.ActionTaken == "" {
		return r.Message
	}
	return strings.TrimSpace(r.Message + " " + r.ActionTaken)
}

// DisplayText is the text shown to the user for a plain (non-sequence) command.
func (r AssistantResponse) DisplayText() string {
	if r.ActionTaken == "" {
		return r.Message
	}
	return r.Message + "\n" + r.ActionTaken
}

// Reply is returned to the transport that delivered a Request.
type Reply struct {
	// RequestID is the original request ID.
	RequestID string `json:"request_id"`

	// Transcript is the recognized text when the request carried audio.
	Transcript string `json:"transcript,omitempty"`

	// Path names the branch that handled the command
	// (compound, browser_search, generic_search, classified, fallback, error).
	Path string `json:"path"`

	// Text is the final display/spoken text.
	Text string `json:"text"`

	// Response is the structured response for classified commands.
	Response *AssistantResponse `json:"response,omitempty"`

	// Error is set if the request could not be turned into a command at all.
	Error string `json:"error,omitempty"`
}
