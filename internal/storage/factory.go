package storage

import "fmt"

// NewStore builds the backend named by kind. An empty kind selects the
// in-memory store; sqlitePath is only consulted for the sqlite backend.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown store kind %q (want memory or sqlite)", kind)
	}
}

// CloseIfSupported releases backends holding external resources; the
// in-memory store has nothing to close.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
