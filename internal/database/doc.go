// Package database provides PostgreSQL connection pool management.
//
// The tracker keeps one pool: watermark records and the ingestion scalar
// both live in the same database.
package database
