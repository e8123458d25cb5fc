package repositories

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// OpenInMemory opens a Badger instance that lives as long as the process.
func OpenInMemory() (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return db, nil
}
