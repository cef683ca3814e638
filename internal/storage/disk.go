package storage

import (
	"errors"
	"io/fs"
	"os"
)

// DatabaseFiles returns the SQLite database file and its WAL side files.
func DatabaseFiles(dbPath string) []string {
	if dbPath == "" {
		return nil
	}
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
}

// DatabaseSize returns the size in bytes of the database at dbPath, WAL files included.
// Missing files count as zero.
func DatabaseSize(dbPath string) (int64, error) {
	var total int64
	for _, p := range DatabaseFiles(dbPath) {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
		}
	}
	return total, nil
}
