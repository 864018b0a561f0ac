//go:build windows

package serialport

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/windows/registry"
)

const serialCommKey = `HARDWARE\DEVICEMAP\SERIALCOMM`

// readDeviceMap reads the live serial device map from the registry. Value
// names are driver device names, value data is the COM name each maps to.
func readDeviceMap() (map[string]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, serialCommKey, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		// Missing key just means no serial devices are installed.
		return nil, nil
	}
	if errors.Is(err, syscall.ERROR_ACCESS_DENIED) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", serialCommKey, err)
	}
	defer key.Close()

	names, err := key.ReadValueNames(0)
	if errors.Is(err, syscall.ERROR_ACCESS_DENIED) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", serialCommKey, err)
	}

	devices := make(map[string]string, len(names))
	for _, device := range names {
		port, _, err := key.GetStringValue(device)
		if err != nil {
			// Skip unreadable or non-string values, keep the rest.
			continue
		}
		devices[device] = port
	}

	return devices, nil
}
