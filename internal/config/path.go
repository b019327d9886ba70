package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDir is where aromance keeps its SQLite files. XDG_DATA_HOME is
// honoured when set.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "aromance")
	}
	return filepath.Join("~", ".local", "share", "aromance")
}

// ExpandPath resolves $VAR references and a leading ~ in path, then
// cleans it. The empty path stays empty.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return filepath.Clean(path)
}
