//go:build !windows

package serialport

// readDeviceMap reports that the serial device map does not exist off
// Windows. The rest of the package still builds so portable logic stays
// testable everywhere.
func readDeviceMap() (map[string]string, error) {
	return nil, ErrUnavailable
}
