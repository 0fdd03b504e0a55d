package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// BackupSuffix is inserted between the config name and its timestamp.
	BackupSuffix = ".bak"

	// MaxBackups is how many user config backups are retained.
	MaxBackups = 3
)

// InitUserConfig writes the default configuration to the user config path.
// An existing file is left alone unless force is set, in which case it is
// backed up first. Returns the backup path, if one was made.
func InitUserConfig(force bool) (string, error) {
	path := GetUserConfigPath()
	var backup string
	if fileExists(path) {
		if !force {
			return "", fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		var err error
		if backup, err = BackupUserConfig(); err != nil {
			return "", err
		}
	}
	if err := NewConfig().WriteYAML(path); err != nil {
		return backup, err
	}
	return backup, nil
}

// BackupUserConfig copies the user config to a timestamped sibling and prunes
// old backups. Returns "" when there is nothing to back up.
func BackupUserConfig() (string, error) {
	path := GetUserConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read user config: %w", err)
	}

	backup := fmt.Sprintf("%s%s.%s", path, BackupSuffix, time.Now().Format("20060102-150405.000000000"))
	if err := os.WriteFile(backup, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	backups, err := ListUserConfigBackups()
	if err != nil {
		return backup, nil
	}
	for _, old := range backups[min(len(backups), MaxBackups):] {
		_ = os.Remove(old)
	}
	return backup, nil
}

// ListUserConfigBackups returns backup paths, newest first.
func ListUserConfigBackups() ([]string, error) {
	path := GetUserConfigPath()
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	prefix := filepath.Base(path) + BackupSuffix + "."
	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	// Timestamps sort lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}
