package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/cache"
	pgconn "github.com/JerrettDavis/QuickApiMapper-sub001/internal/pg-conn"
)

// Kinds of entries in the globals table. Statics feed the engine's "$$."
// resolver; namespaces are declared on SOAP envelope roots.
const (
	GlobalKindStatic    = "static"
	GlobalKindNamespace = "namespace"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		ds, errConn := pgconn.GetDBConnection(configuration)
		if errConn != nil {
			err = errConn
			return
		}
		if errSchema := EnsureSchema(ds.Conn); errSchema != nil {
			err = errSchema
			return
		}
		instance = &Datasource{Conn: ds.Conn, Cache: ds.Cache}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// EnsureSchema creates the qam schema, tables and change-notification triggers
// if they do not exist yet. Safe to run on every startup.
func EnsureSchema(db *sql.DB) error {
	if err := createSchema(db); err != nil {
		return err
	}
	if err := createMappingTable(db); err != nil {
		return err
	}
	if err := createCaptureTable(db); err != nil {
		return err
	}
	if err := createGlobalsTable(db); err != nil {
		return err
	}
	if err := createMappingChangeTriggers(db); err != nil {
		return err
	}
	return nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS qam`)
	if err != nil {
		log.Printf("Error creating qam schema: %v", err)
	}
	return err
}

// createMappingTable creates a PostgreSQL table for the IntegrationMapping struct
func createMappingTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS qam.mappings (
			id SERIAL PRIMARY KEY,
			mapping_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL UNIQUE,
			endpoint TEXT NOT NULL UNIQUE,
			source_type TEXT NOT NULL CHECK (source_type IN ('json', 'xml')),
			destination_type TEXT NOT NULL CHECK (destination_type IN ('json', 'xml')),
			destination_url TEXT,
			static_values JSONB,
			field_mappings JSONB NOT NULL,
			soap_config JSONB,
			auth_config JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating mappings table: %v", err)
	}
	return err
}

// createCaptureTable creates a PostgreSQL table for the MessageCapture struct
func createCaptureTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS qam.captures (
			id SERIAL PRIMARY KEY,
			capture_id TEXT NOT NULL UNIQUE,
			mapping_name TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			source_type TEXT NOT NULL,
			source_payload TEXT,
			mapped_payload TEXT,
			is_success BOOLEAN NOT NULL DEFAULT FALSE,
			error_message TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating captures table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_captures_mapping_name ON qam.captures (mapping_name);
		CREATE INDEX IF NOT EXISTS idx_captures_created_at ON qam.captures (created_at)
	`)
	if err != nil {
		log.Printf("Error creating captures indexes: %v", err)
	}
	return err
}

// createGlobalsTable creates a PostgreSQL table for global statics and namespaces
func createGlobalsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS qam.globals (
			id SERIAL PRIMARY KEY,
			kind TEXT NOT NULL CHECK (kind IN ('static', 'namespace')),
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (kind, key)
		)
	`)
	if err != nil {
		log.Printf("Error creating globals table: %v", err)
	}
	return err
}

// createMappingChangeTriggers installs pg_notify triggers on the mappings and
// globals tables. Payloads carry only identifying columns so they stay inside
// the pg_notify size limit; listeners re-query for full rows when they need
// them.
func createMappingChangeTriggers(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE OR REPLACE FUNCTION qam.notify_mapping_change() RETURNS trigger AS $$
		DECLARE
			rec RECORD;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				rec := OLD;
			ELSE
				rec := NEW;
			END IF;
			PERFORM pg_notify('mapping_change', json_build_object(
				'table', TG_TABLE_NAME,
				'data', json_build_object(
					'mapping_id', rec.mapping_id,
					'name', rec.name,
					'endpoint', rec.endpoint,
					'op', TG_OP
				)
			)::text);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql
	`)
	if err != nil {
		log.Printf("Error creating mapping change function: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE OR REPLACE FUNCTION qam.notify_global_change() RETURNS trigger AS $$
		DECLARE
			rec RECORD;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				rec := OLD;
			ELSE
				rec := NEW;
			END IF;
			PERFORM pg_notify('mapping_change', json_build_object(
				'table', TG_TABLE_NAME,
				'data', json_build_object(
					'kind', rec.kind,
					'key', rec.key,
					'op', TG_OP
				)
			)::text);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql
	`)
	if err != nil {
		log.Printf("Error creating global change function: %v", err)
		return err
	}
	_, err = db.Exec(`
		DROP TRIGGER IF EXISTS mappings_notify ON qam.mappings;
		CREATE TRIGGER mappings_notify
		AFTER INSERT OR UPDATE OR DELETE ON qam.mappings
		FOR EACH ROW EXECUTE FUNCTION qam.notify_mapping_change();
		DROP TRIGGER IF EXISTS globals_notify ON qam.globals;
		CREATE TRIGGER globals_notify
		AFTER INSERT OR UPDATE OR DELETE ON qam.globals
		FOR EACH ROW EXECUTE FUNCTION qam.notify_global_change()
	`)
	if err != nil {
		log.Printf("Error creating change triggers: %v", err)
	}
	return err
}
