package store

import _ "embed"

// Schema creates the tables this service reads and writes. Every statement is
// idempotent; it bootstraps an empty database and is not a migration system.
//
//go:embed schema.sql
var Schema string
