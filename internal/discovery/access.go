// internal/discovery/access.go
package discovery

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrAddressNotFound means the device path does not exist
	ErrAddressNotFound = errors.New("device address not found")
	// ErrPermissionDenied means the device path exists but is not readable and writable
	ErrPermissionDenied = errors.New("permission denied accessing device address")
)

// CheckAddress verifies that address exists and is accessible for read and write
func CheckAddress(address string) error {
	if _, err := os.Stat(address); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrAddressNotFound, address)
		}
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, address)
		}
		return fmt.Errorf("stat %s: %w", address, err)
	}

	if err := checkReadWrite(address); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, address, err)
	}
	return nil
}
