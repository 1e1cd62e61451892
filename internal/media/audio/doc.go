// Package audio chooses which audio stream of a video to align subtitles
// against.
//
// Select ranks the container's audio streams by the alignment language,
// demotes commentary and audio-description tracks, and returns the winner's
// audio-relative track number for ffmpeg's "0:a:N" specifier.
package audio
