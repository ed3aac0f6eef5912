package security

import (
	"fmt"
	"regexp"
	"strings"
)

var packageNamePattern = regexp.MustCompile(`^[^/\x00]+$`)

// ValidatePackageName ensures the package name is usable as a file name in
// the working directory.
func ValidatePackageName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("package name cannot start with '-' or '.'")
	}
	if !packageNamePattern.MatchString(name) {
		return fmt.Errorf("package name cannot contain '/'")
	}
	return nil
}

// ValidateBundleID ensures a bundle identifier is safe to pass as a
// productbuild argument. Its form is left to productbuild.
func ValidateBundleID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("bundle id cannot be empty")
	}
	if strings.HasPrefix(id, "-") {
		return fmt.Errorf("bundle id cannot start with '-'")
	}
	if strings.ContainsRune(id, 0) {
		return fmt.Errorf("bundle id cannot contain NUL bytes")
	}
	return nil
}
