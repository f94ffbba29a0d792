package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"voxelsession.ai/internal/persistence/indexdb"
)

// openRuntimeIndex opens the read-model index selected by
// VS_INDEX_BACKEND (sqlite by default). It returns nil when disabled.
func openRuntimeIndex(dataDir string, disableDB bool, logger *zap.Logger) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "session.sqlite"), logger)
	default:
		return nil, fmt.Errorf("unknown VS_INDEX_BACKEND %q", backend)
	}
}
