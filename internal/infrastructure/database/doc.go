// Package database opens the SQLite file behind the sender sighting log.
//
// Only two tables live here: enocean_sightings and schema_migrations.
// Entity state is held in memory and on retained MQTT topics.
//
// Schema files come from the top-level migrations package, which registers
// its embedded *.sql files on import. Each version ships an .up.sql and a
// .down.sql named YYYYMMDD_HHMMSS_description, and tables are STRICT.
//
//	db, err := database.Open(database.FromConfig(cfg.Database))
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx)
package database
