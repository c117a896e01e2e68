// Package statepaths resolves where the tool keeps its durable state on disk.
// Everything hangs off file_state_dir, which defaults to ~/.wechat-tool.
package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const defaultStateDirName = ".wechat-tool"

func StateDir() string {
	return resolveStateDir(viper.GetString("file_state_dir"))
}

// AccountsPath is the YAML file holding every user's linked accounts.
func AccountsPath() string {
	return filepath.Join(StateDir(), "accounts.yaml")
}

// LedgerPath is the JSON file holding work records and publish history.
func LedgerPath() string {
	return filepath.Join(StateDir(), "works.json")
}

// TempDir holds transient downloads (cover candidates, article images).
func TempDir() string {
	return filepath.Join(StateDir(), "tmp")
}

func resolveStateDir(raw string) string {
	dir := expandHomePath(strings.TrimSpace(raw))
	if dir != "" {
		return filepath.Clean(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return defaultStateDirName
	}
	return filepath.Join(home, defaultStateDirName)
}

func expandHomePath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
