// Package tasks orchestrates collection sync and enrichment against the Discogs catalog with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] exposes three operations:
//
//  1. [Engine.SyncCollection] : Full collection refresh
//     - Walks every page of the owner's everything folder, newest first
//     - Normalizes raw collection items into the domain model
//     - Carries prior enrichment forward by release id
//     - Recomputes stats and persists the snapshot atomically
//
//  2. [Engine.EnrichBatch] : Resumable master-release enrichment
//     - Recomputes the work list from the snapshot on every call
//     - Copies original year, genres, and styles down from each master
//     - Checkpoints the snapshot and counters every few items
//     - Item failures count and continue, they never abort the batch
//
//  3. [Engine.EnrichmentNeeded] : Classify a snapshot's releases
//     - Reports how many releases still await master data
//     - Separates enriched releases from those without a master
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Concurrency
//
// A short-TTL lease in the store serializes runs per owner across processes
//
// The lease TTL frees a stuck owner even when the holding process dies mid-run.
//
// # Implementation
//
// [Engine] depends on:
//   - [Catalog] : the rate-governed Discogs API client (discogs.Client)
//   - [store.Store] : snapshot, master cache, and progress persistence
//   - rate.Limiter pacers : spacing between page fetches and master lookups
package tasks
