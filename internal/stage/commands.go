package stage

import (
	"strings"

	"macsign/internal/config"
)

// Tool names invoked by the stages.
const (
	toolCodesign     = "codesign"
	toolDitto        = "ditto"
	toolProductbuild = "productbuild"
	toolXcrun        = "xcrun"
)

// falseEntitlements are values meaning "no entitlements file".
var falseEntitlements = map[string]bool{
	"":      true,
	"none":  true,
	"n":     true,
	"no":    true,
	"f":     true,
	"false": true,
	"off":   true,
	"0":     true,
}

// NormalizeEntitlements returns the entitlements path to sign with, or false
// when the configured value is empty, "none" or a boolean false in any case.
// Any other value is used verbatim.
func NormalizeEntitlements(value string) (string, bool) {
	if falseEntitlements[strings.ToLower(strings.TrimSpace(value))] {
		return "", false
	}
	return value, true
}

// SignCommand builds the codesign invocation for every configured file.
func SignCommand(s *config.Settings) []string {
	cmd := []string{toolCodesign, "--deep", "--force", "--timestamp", "--options=runtime"}
	if entitlements, ok := NormalizeEntitlements(s.Entitlements); ok {
		cmd = append(cmd, "--entitlements", entitlements)
	}
	cmd = append(cmd, "--sign", s.ApplicationID)
	return append(cmd, s.FileList...)
}

// CopyCommand builds the ditto invocation placing src at dst.
func CopyCommand(src, dst string) []string {
	return []string{toolDitto, src, dst}
}

// PackageCommand builds the productbuild invocation for a staged root.
func PackageCommand(s *config.Settings, root string) []string {
	return []string{
		toolProductbuild,
		"--identifier", s.BundleID + ".pkg",
		"--sign", s.InstallerID,
		"--timestamp",
		"--version", s.Version,
		"--root", root, "/",
		"./" + s.PackageFile(),
	}
}

// NotarizeCommand submits the package and waits for the service's verdict.
func NotarizeCommand(s *config.Settings) []string {
	return []string{
		toolXcrun, "notarytool", "submit", "--wait",
		"--keychain-profile", s.KeychainProfile,
		s.PackageFile(),
	}
}

// HistoryCommand lists recent submissions for manual follow-up.
func HistoryCommand(s *config.Settings) []string {
	return []string{toolXcrun, "notarytool", "history", "--keychain-profile", s.KeychainProfile}
}

// LegacySubmitCommand uploads the package with altool without waiting.
func LegacySubmitCommand(s *config.Settings) []string {
	return []string{
		toolXcrun, "altool", "--notarize-app",
		"--primary-bundle-id", s.BundleID,
		"--username", s.AppleID,
		"--password", s.Password,
		"--file", s.PackageFile(),
	}
}

// LegacyStatusCommand queries altool for the status of a request.
func LegacyStatusCommand(s *config.Settings, handle string) []string {
	return []string{
		toolXcrun, "altool", "--notarization-info", handle,
		"--username", s.AppleID,
		"--password", s.Password,
	}
}

// StapleCommand attaches the notarization ticket to the package.
func StapleCommand(s *config.Settings) []string {
	return []string{toolXcrun, "stapler", "staple", s.PackageFile()}
}
