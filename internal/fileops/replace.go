package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const backupSuffix = ".ydl.bak"

var (
	statFile   = os.Stat
	renameFile = os.Rename
	removeFile = os.Remove
)

// TempSibling names a hidden scratch file next to target that keeps its
// extension, so tools that infer the container from the name still work.
func TempSibling(target string, purpose string) string {
	dir, base := filepath.Split(target)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s%s", stem, purpose, ext))
}

// ReplaceFileSafely moves tempPath over targetPath. The old target is parked
// as <target>.ydl.bak and put back if the move fails.
func ReplaceFileSafely(tempPath string, targetPath string) error {
	temp, target := strings.TrimSpace(tempPath), strings.TrimSpace(targetPath)
	switch {
	case temp == "" || target == "":
		return fmt.Errorf("replace needs both a temp and a target path")
	case temp == target:
		return fmt.Errorf("cannot replace %s with itself", target)
	}

	if info, err := statFile(temp); err != nil {
		return fmt.Errorf("stat tagged file %q: %w", temp, err)
	} else if info.IsDir() {
		return fmt.Errorf("tagged file is a directory: %s", temp)
	}

	backup := target + backupSuffix
	if err := RemoveIfExists(backup); err != nil {
		return fmt.Errorf("clear stale backup: %w", err)
	}

	parked, err := park(target, backup)
	if err != nil {
		return err
	}

	if err := renameFile(temp, target); err != nil {
		if parked {
			if restoreErr := renameFile(backup, target); restoreErr != nil {
				return fmt.Errorf("replace %s failed (%v) and restoring it failed: %w", target, err, restoreErr)
			}
		}
		return fmt.Errorf("move tagged file into place: %w", err)
	}

	if parked {
		if err := removeFile(backup); err != nil {
			return fmt.Errorf("remove backup %q: %w", backup, err)
		}
	}
	return nil
}

func park(target string, backup string) (bool, error) {
	_, err := statFile(target)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat %q: %w", target, err)
	}
	if err := renameFile(target, backup); err != nil {
		return false, fmt.Errorf("move %s aside: %w", target, err)
	}
	return true, nil
}

// RemoveIfExists deletes path and treats a missing file as success.
func RemoveIfExists(path string) error {
	if err := removeFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", path, err)
	}
	return nil
}
