// Package state persists the last-known live/offline flag per channel, so a
// restart does not replay notifications for channels that were already live.
//
// Two backends:
//   - "file": a single JSON object, written atomically (write-then-rename)
//   - "sqlite": a SQLite table (build with -tags sqlite)
package state
