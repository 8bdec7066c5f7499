// Package store provides auth.TokenStore implementations: an in-memory map,
// a JSON file on disk, a SQLite table through bun and a Redis namespace.
package store
