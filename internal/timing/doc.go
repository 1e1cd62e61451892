// Package timing holds the pure word-timing rules used when subtitle text
// changes after transcription.
//
// Three leaf operations live here:
//   - Redistribute estimates word spans from character lengths when no
//     alignment signal exists.
//   - IsValid decides whether an alignment result can be trusted for a
//     segment.
//   - Rescale compresses a word span so it never intrudes on the next
//     subtitle or exceeds the maximum block duration.
//
// Nothing in this package performs I/O or blocks; callers own ordering,
// persistence, and logging.
package timing
