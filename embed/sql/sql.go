package sql

import _ "embed"

// Schema creates the slot table used by the SQLite store.
//
//go:embed schema.sql
var Schema string
