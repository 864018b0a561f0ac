package hub4com

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrExeMissing indicates hub4com.exe could not be found.
var ErrExeMissing = errors.New("hub4com.exe not found")

const exeName = "hub4com.exe"

// LocateExe returns the hub4com binary to run. An explicitly configured path
// must exist as given; otherwise the working directory and the usual com0com
// install locations are tried in order.
func LocateExe(configured string) (string, error) {
	if configured != "" {
		if fileExists(configured) {
			return configured, nil
		}
		return "", fmt.Errorf("%w at configured path %s", ErrExeMissing, configured)
	}

	candidates := []string{
		exeName,
		filepath.Join(`C:\Program Files (x86)\com0com`, exeName),
		filepath.Join(`C:\Program Files\com0com`, exeName),
	}
	if wd, err := os.Getwd(); err == nil {
		candidates[0] = filepath.Join(wd, exeName)
	}

	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrExeMissing, strings.Join(candidates, ", "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
