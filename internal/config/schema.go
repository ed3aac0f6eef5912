package config

// Section and key names used by the pipeline.
const (
	SectionIdentification = "identification"
	SectionPackageDetails = "package_details"

	KeyApplicationID    = "application_id"
	KeyInstallerID      = "installer_id"
	KeyKeychainProfile  = "keychain-profile"
	KeyAppleID          = "apple_id"
	KeyPassword         = "password"
	KeyPackageName      = "package_name"
	KeyBundleID         = "bundle_id"
	KeyFileList         = "file_list"
	KeyInstallationPath = "installation_path"
	KeyEntitlements     = "entitlements"
	KeyVersion          = "version"
)

// SampleFileName is the name written by the --new flag.
const SampleFileName = "pycodesign.ini"

// Key is a required configuration key and the placeholder shown when it is missing.
type Key struct {
	Name        string
	Placeholder string
}

// Section groups the required keys of one configuration section.
type Section struct {
	Name string
	Keys []Key
}

// Schema is an ordered list of required sections.
type Schema []Section

// DefaultSchema returns the keys every run requires.
func DefaultSchema() Schema {
	return Schema{
		{
			Name: SectionIdentification,
			Keys: []Key{
				{KeyApplicationID, "Unique Substring of Developer ID Application Cert"},
				{KeyInstallerID, "Unique Substring of Developer ID Installer Cert"},
				{KeyKeychainProfile, "Name-of-stored-keychain-profile"},
			},
		},
		{
			Name: SectionPackageDetails,
			Keys: []Key{
				{KeyPackageName, "nameofpackage"},
				{KeyBundleID, "com.developer.packagename"},
				{KeyFileList, "include_file1, include_file2"},
				{KeyInstallationPath, "/Applications/"},
				{KeyEntitlements, "None"},
				{KeyVersion, "0.0.0"},
			},
		},
	}
}

// LegacyNotarizationSchema returns the extra credentials altool needs.
func LegacyNotarizationSchema() Schema {
	return Schema{
		{
			Name: SectionIdentification,
			Keys: []Key{
				{KeyAppleID, "developer@domain.com"},
				{KeyPassword, "@keychain:App-Specific-Password-Name-In-Keychain"},
			},
		},
	}
}

// Merge returns a schema containing the sections of s followed by other.
// Keys of a section present in both are appended to the existing section.
func (s Schema) Merge(other Schema) Schema {
	merged := make(Schema, 0, len(s)+len(other))
	index := make(map[string]int)
	add := func(sec Section) {
		if i, ok := index[sec.Name]; ok {
			merged[i].Keys = append(merged[i].Keys, sec.Keys...)
			return
		}
		index[sec.Name] = len(merged)
		merged = append(merged, Section{Name: sec.Name, Keys: append([]Key(nil), sec.Keys...)})
	}
	for _, sec := range s {
		add(sec)
	}
	for _, sec := range other {
		add(sec)
	}
	return merged
}
