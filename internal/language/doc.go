// Package language normalizes the alignment language setting.
//
// WhisperX picks its alignment model by ISO 639-1 code, while users tend to
// write "German", "deu" or "de-DE". ToISO2 folds all of those to "de".
package language
