// Package wordtiming asks a generative audio model for word timestamps when
// forced alignment produced an implausible result for a subtitle.
//
// The subtitle window (plus a small padding) is cut from the extracted audio,
// sent inline with the expected text, and the returned clip-relative times
// are shifted back onto the track timeline.
package wordtiming
