// Package subtitle owns the project and subtitle data model and its SQLite
// persistence.
//
// Each subtitle update is committed in its own transaction so a partially
// applied reconciliation batch never leaves a subtitle with mixed words.
// JSON helpers import and export projects and change lists, and LockProject
// serialises reconciliation runs across processes.
package subtitle
