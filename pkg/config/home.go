package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const envHome = "UISELECTOR_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the uiselector home directory.
//
// Resolution order:
//  1. $UISELECTOR_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetLogDir returns <home>/logs.
func GetLogDir() string {
	return filepath.Join(GetHome(), "logs")
}

// DefaultLogFile returns <home>/logs/uiselector.log, creating the log
// directory if needed. It is used when no log file is configured.
func DefaultLogFile() (string, error) {
	dir := GetLogDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	return filepath.Join(dir, "uiselector.log"), nil
}

// GetConfigDir returns the directory searched for uiselector.yaml: the home
// directory itself.
func GetConfigDir() string {
	return GetHome()
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// 2. Binary-relative: if binary is at <home>/bin/uiselector, use <home>
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
