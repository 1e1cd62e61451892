// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and decodes the streams and container format. Stream
// helpers normalize the language and title tags that audio track selection
// relies on.
package ffprobe
