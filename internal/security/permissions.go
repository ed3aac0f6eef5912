package security

import (
	"fmt"
	"os"
)

const (
	// PermConfigFile is for configuration files holding credentials.
	// rw-r----- (0640): owner can read/write, group can read, others have no access.
	PermConfigFile os.FileMode = 0640

	// PermPublicFile is for files that can be read by anyone.
	// rw-r--r-- (0644): owner can read/write, group and others can read.
	PermPublicFile os.FileMode = 0644
)

// CreateSecureFile creates a new file with the given permissions.
// An existing file is left untouched and the error wraps os.ErrExist.
func CreateSecureFile(path string, perm os.FileMode) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	// Explicitly set permissions to bypass umask
	if err := os.Chmod(path, perm); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to set file permissions: %w", err)
	}

	return file, nil
}

// IsWorldReadable checks if a file is readable by others.
func IsWorldReadable(perm os.FileMode) bool {
	return perm&0004 != 0
}

// IsWorldWritable checks if a file is writable by others.
func IsWorldWritable(perm os.FileMode) bool {
	return perm&0002 != 0
}

// ValidateSecurePermissions reports a file that others can read or write.
// Used for configuration files that carry notarization credentials.
func ValidateSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	perm := info.Mode().Perm()

	if IsWorldWritable(perm) {
		return fmt.Errorf("file %s is world-writable (%04o)", path, perm)
	}

	if IsWorldReadable(perm) {
		return fmt.Errorf("file %s is world-readable (%04o)", path, perm)
	}

	return nil
}
