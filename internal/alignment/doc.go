// Package alignment reconciles accepted subtitle text changes with the audio.
//
// A run moves through idle, whisperx (with an extracting detour and one retry
// when the primary call fails), validating, gemini (only for segments that
// failed validation), applying and complete. Any batch-level failure ends in
// the error stage. Progress is reported on every transition.
//
// Collaborators are small interfaces (Aligner, AudioExtractor, FallbackTimer,
// TempFileManager, SubtitleStore); adapters.go binds them to the WhisperX
// client, ffmpeg, the fallback word-timing service, fileutil and the SQLite
// subtitle store.
package alignment
