package config

import "strings"

// Settings is the typed view of a validated configuration.
type Settings struct {
	ApplicationID   string
	InstallerID     string
	KeychainProfile string

	// Only used by legacy altool notarization.
	AppleID  string
	Password string

	PackageName      string
	BundleID         string
	FileList         []string
	InstallationPath string
	Entitlements     string
	Version          string
}

// NewSettings builds Settings from cfg. Absent keys become empty strings;
// run Validate first.
func NewSettings(cfg Config) *Settings {
	get := func(section, key string) string {
		value, _ := cfg.Get(section, key)
		return value
	}

	return &Settings{
		ApplicationID:    get(SectionIdentification, KeyApplicationID),
		InstallerID:      get(SectionIdentification, KeyInstallerID),
		KeychainProfile:  get(SectionIdentification, KeyKeychainProfile),
		AppleID:          get(SectionIdentification, KeyAppleID),
		Password:         get(SectionIdentification, KeyPassword),
		PackageName:      get(SectionPackageDetails, KeyPackageName),
		BundleID:         get(SectionPackageDetails, KeyBundleID),
		FileList:         ParseFileList(get(SectionPackageDetails, KeyFileList)),
		InstallationPath: get(SectionPackageDetails, KeyInstallationPath),
		Entitlements:     get(SectionPackageDetails, KeyEntitlements),
		Version:          get(SectionPackageDetails, KeyVersion),
	}
}

// PackageFile is the installer archive written to the working directory.
func (s *Settings) PackageFile() string {
	return s.PackageName + ".pkg"
}

// ParseFileList splits a comma-separated file list. Order and duplicates
// are preserved; surrounding whitespace, including the line breaks of a
// continued value, and empty entries are dropped.
func ParseFileList(value string) []string {
	var files []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			files = append(files, part)
		}
	}
	return files
}
