// Package stores persists transit scan runs. It includes a SQLite store with
// WAL mode and embedded migrations for runs, their transit times and an
// append-only event log.
package stores
