package store

import (
	"context"
	"fmt"
)

// Backend is a slot store that owns an underlying resource.
type Backend interface {
	Slots
	Close() error
}

// Open returns the slot backend for driver: "sqlite" opens (creating if
// needed) the database at path, "memory" ignores path.
func Open(ctx context.Context, driver, path string) (Backend, error) {
	switch driver {
	case "memory":
		return NewMemorySlots(), nil
	case "sqlite":
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		slots, err := NewSQLiteSlots(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return slots, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driver)
	}
}
