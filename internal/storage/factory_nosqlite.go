//go:build !sqlite

package storage

import "fmt"

func DefaultStoreKind() string {
	return "memory"
}

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("sqlite store requires a binary built with -tags sqlite")
}
