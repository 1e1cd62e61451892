// Package services defines shared utilities consumed by the reconciliation
// engine and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that separate batch-level
//     failures (alignment) from segment-level degradations (fallback).
//
// Use these helpers when wiring new service clients so error handling and
// observability stay uniform across the pipeline.
package services
