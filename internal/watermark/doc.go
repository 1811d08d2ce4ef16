// Package watermark tracks per-symbol trading-volume high-water marks.
//
// Each symbol carries two marks: the all-time ("ever") record volume and the
// trailing-365-day ("year") record volume, each paired with the first date
// that achieved it. Observations enter through Store.Apply, which merges one
// (symbol, date, volume) data point into the stored record, recomputing the
// trailing-year mark from supplied history when the previous year mark has
// aged out of the window. BatchApply is the bulk path for bootstrap loads
// that already carry full history per symbol.
//
// Persistence sits behind the Backend interface with two implementations:
// MemoryBackend for tests and single-run tooling, PostgresBackend for the
// service. The Store serializes writers per symbol through sharded mutexes
// so distinct symbols update in parallel while a backfill and a live poll
// on the same symbol can never interleave.
package watermark
