package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var removeTree = os.RemoveAll

// RemoveItemDir deletes an item's working directory. Anything that is not
// strictly below root is refused.
func RemoveItemDir(root string, dir string) error {
	if strings.TrimSpace(root) == "" || strings.TrimSpace(dir) == "" {
		return fmt.Errorf("item directory and cache root must be set")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve cache root: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve item directory: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s: not inside %s", absDir, absRoot)
	}
	if err := removeTree(absDir); err != nil {
		return fmt.Errorf("remove %s: %w", absDir, err)
	}
	return nil
}
