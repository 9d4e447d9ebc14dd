package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// NormalizeBackend maps a configured backend name onto its canonical form.
func NormalizeBackend(backend string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendLevelDB:
		return BackendLevelDB, nil
	case BackendBolt, "bbolt":
		return BackendBolt, nil
	case BackendMemory:
		return BackendMemory, nil
	default:
		return "", fmt.Errorf("storage: unknown backend %q", backend)
	}
}

// Open selects a backend by name. An empty path is only valid for "memory".
func Open(backend, path string) (Database, error) {
	name, err := NormalizeBackend(backend)
	if err != nil {
		return nil, err
	}
	switch name {
	case BackendBolt:
		if path == "" {
			return nil, fmt.Errorf("storage: bolt requires a path")
		}
		return NewBoltDB(filepath.Join(path, "habits.db"))
	case BackendMemory:
		return NewMemDB(), nil
	default:
		if path == "" {
			return nil, fmt.Errorf("storage: leveldb requires a path")
		}
		return NewLevelDB(path)
	}
}
