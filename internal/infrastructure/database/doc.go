// Package database opens the local session database and applies its
// embedded migrations.
//
// The file holds bearer tokens, so it is created owner-only (0600) and an
// existing file is tightened on open. Migrations are YYYYMMDD_HHMMSS_name.up.sql
// and .down.sql pairs; each applied migration is recorded with a checksum,
// and Migrate stops if an applied file has since been edited.
//
//	db, err := database.Open(database.Config{Path: cfg.Store.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
