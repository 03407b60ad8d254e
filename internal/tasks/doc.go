// Package tasks builds listening receipts from a music service with real-time progress reporting.
//
// # Core Operations
//
//  1. [ReceiptEngine.Build] : one receipt for a time range
//     - Fetches the listener profile and the top tracks concurrently
//     - Ranks lines in the order the service returns them
//
//  2. [ReceiptEngine.BuildAll] : a receipt for every time range
//     - Fetches the profile once, then fans the ranges out to a small worker pool
//     - Paces requests with a [rate.Limiter] on top of the session manager's own limiter
//     - Tolerates partial failure; each range reports its own error
//     - Optionally persists each receipt through a [ReceiptSaver]
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
