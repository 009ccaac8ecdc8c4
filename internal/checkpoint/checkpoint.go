// Package checkpoint periodically snapshots a table's B+Tree to disk so
// recovery can start from the snapshot instead of replaying the entire
// write-ahead log from empty.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Manager creates and loads checkpoint files under one base directory.
type Manager struct {
	basePath string
	mu       sync.Mutex
}

// NewManager creates a manager rooted at basePath (typically the
// database directory's "checkpoints" subdirectory).
func NewManager(basePath string) *Manager {
	return &Manager{basePath: basePath}
}

// Create serializes data (produced by a Serialize func, see tree.go) as
// the checkpoint for tableName at the given LSN, replacing the file
// atomically (write-temp + rename) and pruning older checkpoints for
// the same table.
func (cm *Manager) Create(tableName string, lsn uint64, data []byte) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := os.MkdirAll(cm.basePath, 0755); err != nil {
		return fmt.Errorf("checkpoint: mkdir: %w", err)
	}

	filename := fmt.Sprintf("checkpoint_%s_%d.chk", tableName, lsn)
	path := filepath.Join(cm.basePath, filename)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}

	return cm.cleanOlder(tableName, lsn)
}

func (cm *Manager) cleanOlder(tableName string, keepLSN uint64) error {
	files, err := os.ReadDir(cm.basePath)
	if err != nil {
		return err
	}

	prefix := fmt.Sprintf("checkpoint_%s_", tableName)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) && strings.HasSuffix(f.Name(), ".chk") {
			lsnStr := strings.TrimSuffix(strings.TrimPrefix(f.Name(), prefix), ".chk")
			lsn, err := strconv.ParseUint(lsnStr, 10, 64)
			if err == nil && lsn < keepLSN {
				os.Remove(filepath.Join(cm.basePath, f.Name()))
			}
		}
	}
	return nil
}

// LoadLatest returns the bytes of the most recent checkpoint for
// tableName and the LSN it was taken at, or os.ErrNotExist if none
// exists.
func (cm *Manager) LoadLatest(tableName string) ([]byte, uint64, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	files, err := os.ReadDir(cm.basePath)
	if err != nil {
		return nil, 0, err
	}

	prefix := fmt.Sprintf("checkpoint_%s_", tableName)
	var maxLSN uint64
	var latestFile string
	found := false

	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) && strings.HasSuffix(f.Name(), ".chk") {
			lsnStr := strings.TrimSuffix(strings.TrimPrefix(f.Name(), prefix), ".chk")
			lsn, err := strconv.ParseUint(lsnStr, 10, 64)
			if err == nil && lsn >= maxLSN {
				maxLSN = lsn
				latestFile = f.Name()
				found = true
			}
		}
	}

	if !found {
		return nil, 0, os.ErrNotExist
	}

	data, err := os.ReadFile(filepath.Join(cm.basePath, latestFile))
	if err != nil {
		return nil, 0, err
	}
	return data, maxLSN, nil
}
