// Package output holds the sinks a chain result is handed to: an identifier
// list file and a console table.
package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ListFileName returns <dir>/<prefix><pid>.txt. The pid suffix keeps
// concurrent runs from writing the same file.
func ListFileName(dir, prefix string, pid int) string {
	return filepath.Join(dir, prefix+strconv.Itoa(pid)+".txt")
}

// WriteList writes one identifier per line to path. The file is written to a
// temporary name in the same directory and renamed into place.
func WriteList(path string, ids []string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, id := range ids {
		if _, err := w.WriteString(id + "\n"); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
