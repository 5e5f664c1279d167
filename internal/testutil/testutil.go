package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteStringToTempFile returns the file path and a cleanup function.
func WriteStringToTempFile(content string) (string, func(), error) {
	tempFile, err := os.CreateTemp("", "temp-*")
	if err != nil {
		return "", nil, err
	}

	if _, err := tempFile.WriteString(content); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return "", nil, err
	}

	tempFile.Close()

	cleanup := func() {
		os.Remove(tempFile.Name())
	}

	return tempFile.Name(), cleanup, nil
}

// WriteTestFile writes content under t.TempDir() with the given permissions. The mode is applied
// with Chmod so the process umask does not interfere.
func WriteTestFile(t testing.TB, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("failed to chmod %s: %v", path, err)
	}
	return path
}
