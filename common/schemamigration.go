package common

import (
	"fmt"
	"regexp"
	"strings"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
)

var (
	createTableRegex         = regexp.MustCompile(`(?i)create table if not exists ([0-9a-z_]*) *\(`)
	alterTableAddColumnRegex = regexp.MustCompile(`(?i)alter table ([0-9a-z_]*) add column if not exists ([0-9a-z_]*)`)
	addIndexRegex            = regexp.MustCompile(`(?i)create (unique )?index if not exists ([0-9a-z_]*) on ([0-9a-z_]*)`)
)

// InitSchemas runs the schema statements in order, skipping tables and indexes that already exist.
// When redis is configured the whole run holds the schema_init lock so processes don't race each other.
func InitSchemas(db *sqlx.DB, name string, schemas ...string) error {
	if RedisPool != nil {
		ok, err := TryLockRedisKey("schema_init", 60)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("Schema initialization: another process holds the lock, skipping ", name)
			return nil
		}
		defer UnlockRedisKey("schema_init")
	}

	for i, v := range schemas {
		actualName := fmt.Sprintf("%s[%d]", name, i)

		skip, err := checkSkipSchemaInit(db, v)
		if err != nil {
			logger.WithError(err).Error("Failed checking if we should skip schema: ", actualName)
		}

		if skip {
			continue
		}

		logger.Info("Schema initialization: ", actualName, ": not skipped")
		if _, err := db.Exec(v); err != nil {
			return errors.WithMessage(err, "failed initializing postgres db schema for "+actualName)
		}
	}

	return nil
}

func checkSkipSchemaInit(db *sqlx.DB, schema string) (exists bool, err error) {
	trimmed := strings.TrimSpace(schema)

	if matches := createTableRegex.FindStringSubmatch(trimmed); matches != nil {
		return tableExists(db, matches[1])
	}

	if matches := addIndexRegex.FindStringSubmatch(trimmed); matches != nil {
		return indexExists(db, matches[2])
	}

	if matches := alterTableAddColumnRegex.FindStringSubmatch(trimmed); matches != nil {
		return columnExists(db, matches[1], matches[2])
	}

	return false, nil
}

func tableExists(db *sqlx.DB, table string) (b bool, err error) {
	const query = `
SELECT EXISTS
(
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public'
	AND table_name = $1
);`

	err = db.Get(&b, query, table)
	return b, errors.WithStackIf(err)
}

func indexExists(db *sqlx.DB, index string) (b bool, err error) {
	const query = `
SELECT EXISTS
(
	SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND indexname = $1
);`

	err = db.Get(&b, query, index)
	return b, errors.WithStackIf(err)
}

func columnExists(db *sqlx.DB, table, column string) (b bool, err error) {
	const query = `
SELECT EXISTS
(
	SELECT 1
	FROM information_schema.columns
	WHERE table_schema = 'public'
	AND table_name = $1
	AND column_name = $2
);`

	err = db.Get(&b, query, table, column)
	return b, errors.WithStackIf(err)
}
