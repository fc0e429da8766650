package store

import (
	"testing"

	"github.com/safetyjim/safetyjim/common/testutils"
)

func TestPQStore(t *testing.T) {
	db, err := testutils.InitPQ(DBTables, DBSchemas)
	if err == testutils.ErrNoTestDB {
		t.Skip("no postgres test database configured")
	}
	if err != nil {
		t.Fatal("failed connecting to the test database: ", err)
	}
	defer db.Close()

	runStoreTests(t, func(t *testing.T) ActionStore {
		testutils.ClearTables(db, DBTables...)
		return NewPQStore(db)
	})
}
