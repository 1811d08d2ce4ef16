// Package model defines shared data types used across the volume tracker.
//
// Conventions:
//   - Trading dates: time.Time at UTC midnight of the exchange-local calendar
//     day, produced by the calendar package; a zero time.Time means unset
//   - Raw bar timestamps: int64 milliseconds since Unix epoch (as delivered)
//   - Record write times: int64 microseconds since Unix epoch
//   - Volumes: int64 share counts
package model
