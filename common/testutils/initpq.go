package testutils

import (
	"fmt"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"

	// postgres driver
	_ "github.com/lib/pq"
)

var ErrNoTestDB = errors.NewPlain("JIM_TEST_PQ_HOST not set")

// ConnectPQ connects to the postgres test database described by the JIM_TEST_PQ_* env vars.
// It returns ErrNoTestDB when no host is set so tests can skip.
func ConnectPQ() (*sqlx.DB, error) {
	host := os.Getenv("JIM_TEST_PQ_HOST")
	if host == "" {
		return nil, ErrNoTestDB
	}

	user := envOr("JIM_TEST_PQ_USER", "jim_test")
	dbName := envOr("JIM_TEST_PQ_DB", "jim_test")
	sslMode := envOr("JIM_TEST_PQ_SSLMODE", "disable")
	password := os.Getenv("JIM_TEST_PQ_PASSWORD")

	if !strings.Contains(dbName, "test") {
		panic("Test database name has to contain 'test', this is a safety measure to protect against running tests on production systems.")
	}

	connStr := fmt.Sprintf("host=%s user=%s dbname=%s sslmode=%s password='%s'", host, user, dbName, sslMode, password)
	fmt.Printf("Postgres test database: host=%s user=%s dbname=%s\n", host, user, dbName)

	db, err := sqlx.Connect("postgres", connStr)
	return db, errors.WithStackIf(err)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// InitTables will drop the provided tables and run the init queries
func InitTables(db *sqlx.DB, dropTables []string, initQueries []string) error {
	for _, v := range dropTables {
		_, err := db.Exec("DROP TABLE IF EXISTS " + v)
		if err != nil {
			return errors.WithStackIf(err)
		}
	}

	for _, v := range initQueries {
		_, err := db.Exec(v)
		if err != nil {
			return errors.WithStackIf(err)
		}
	}

	return nil
}

// InitPQ is a helper that calls both ConnectPQ and InitTables
func InitPQ(dropTables []string, initQueries []string) (*sqlx.DB, error) {
	db, err := ConnectPQ()
	if err != nil {
		return nil, err
	}

	err = InitTables(db, dropTables, initQueries)
	return db, err
}

// ClearTables deletes all rows from the tables and panics if an error occurs,
// meant for deferred test cleanup
func ClearTables(db *sqlx.DB, tables ...string) {
	for _, v := range tables {
		_, err := db.Exec("DELETE FROM " + v + ";")
		if err != nil {
			panic(err)
		}
	}
}
