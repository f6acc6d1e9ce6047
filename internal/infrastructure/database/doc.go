// Package database provides SQLite connectivity for the radio gateway.
//
// The gateway keeps a small amount of local state in SQLite: the latest
// decoded reading per BLE device, a bounded reading history and the LoRa
// message journal. This package owns the connection and schema migrations;
// the tables themselves are defined by the SQL files embedded in the
// top-level migrations package.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive. Each version has an .up.sql file and an optional
// .down.sql file named YYYYMMDD_HHMMSS_description.{up,down}.sql.
package database
