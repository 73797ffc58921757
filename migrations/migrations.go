// Package migrations embeds the SQL migration files applied to the two
// logical databases: the main store and the segregated key store.
package migrations

import "embed"

// MainFS holds the migrations for Users, Peers, Observations and Locations.
//
//go:embed main/*.sql
var MainFS embed.FS

// KeyStoreFS holds the migrations for the segregated, encrypted-at-rest Keys table.
//
//go:embed keystore/*.sql
var KeyStoreFS embed.FS
