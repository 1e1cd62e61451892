// Package whisperx drives the WhisperX forced-alignment service and prepares
// its audio input.
//
// This package handles:
//   - Audio extraction with ffmpeg (full track or a float-second window)
//   - The JSON-RPC 2.0 stdio protocol of the Python alignment service
//   - Progress notification forwarding and sampling
//
// The Client starts the service lazily on the first Align call and keeps it
// running until Close.
package whisperx
