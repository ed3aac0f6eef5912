package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"macsign/internal/security"
	"macsign/pkg/fileutil"
)

// ErrNotFound is returned by Load when the configuration file does not exist.
var ErrNotFound = errors.New("configuration file not found")

// ParseError reports a configuration file that exists but cannot be read or parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse config file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Config maps section name to key name to value.
type Config map[string]map[string]string

// Get returns the value of section.key.
func (c Config) Get(section, key string) (string, bool) {
	values, ok := c[section]
	if !ok {
		return "", false
	}
	value, ok := values[key]
	return value, ok
}

// Set stores value at section.key, creating the section if needed.
func (c Config) Set(section, key, value string) {
	if c[section] == nil {
		c[section] = make(map[string]string)
	}
	c[section][key] = value
}

// Load reads a configuration file. Files ending in .yaml or .yml are read as
// YAML documents of sections; everything else is read as INI.
func Load(path string) (Config, error) {
	if !fileutil.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = parseYAML(data)
	default:
		cfg, err = parseINI(data)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	return cfg, nil
}

// parseINI reads INI the way Python's configparser does: indented lines
// continue the previous value, and [DEFAULT] keys are inherited by every
// other section unless the section sets them itself.
func parseINI(data []byte) (Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:            true,
		IgnoreInlineComment:        true,
		PreserveSurroundedQuote:    true,
		AllowPythonMultilineValues: true,
	}, data)
	if err != nil {
		return nil, err
	}

	defaults := make(map[string]string)
	if section, err := file.GetSection(ini.DefaultSection); err == nil {
		for _, key := range section.Keys() {
			defaults[key.Name()] = iniValue(key.Value())
		}
	}

	cfg := make(Config)
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		keys := section.Keys()
		values := make(map[string]string, len(defaults)+len(keys))
		for name, value := range defaults {
			values[name] = value
		}
		for _, key := range keys {
			values[key.Name()] = iniValue(key.Value())
		}
		cfg[section.Name()] = values
	}

	return cfg, nil
}

// iniValue strips the indentation of continuation lines and drops blank ones.
func iniValue(raw string) string {
	if !strings.Contains(raw, "\n") {
		return raw
	}
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func parseYAML(data []byte) (Config, error) {
	var raw map[string]map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	cfg := make(Config, len(raw))
	for section, keys := range raw {
		values := make(map[string]string, len(keys))
		for key, node := range keys {
			value, err := yamlScalar(&node)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", section, key, err)
			}
			values[strings.ToLower(key)] = value
		}
		cfg[section] = values
	}

	return cfg, nil
}

// yamlScalar keeps the literal text of a scalar so "1.0" stays "1.0".
// Sequences are joined with commas to match the INI file_list format.
func yamlScalar(node *yaml.Node) (string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == "!!null" {
			return "", nil
		}
		return node.Value, nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return "", fmt.Errorf("list items must be scalars")
			}
			items = append(items, item.Value)
		}
		return strings.Join(items, ","), nil
	default:
		return "", fmt.Errorf("value must be a scalar or a list of scalars")
	}
}

// MissingSection lists the keys of one section absent from a configuration.
type MissingSection struct {
	Name string
	Keys []Key
}

// MissingKeys is the result of Validate, grouped by section in schema order.
type MissingKeys []MissingSection

// Len returns the total number of missing keys.
func (m MissingKeys) Len() int {
	n := 0
	for _, sec := range m {
		n += len(sec.Keys)
	}
	return n
}

// String renders the missing keys the way an operator fills them in.
func (m MissingKeys) String() string {
	var b strings.Builder
	for _, sec := range m {
		fmt.Fprintf(&b, "[%s]\n", sec.Name)
		for _, key := range sec.Keys {
			fmt.Fprintf(&b, "\t%s: %s\n", key.Name, key.Placeholder)
		}
	}
	return b.String()
}

// Validate returns every key the schema declares that cfg lacks, with the
// schema placeholder for each. An empty result means cfg is valid.
// Missing keys are reported, never filled in.
func Validate(cfg Config, schema Schema) MissingKeys {
	var missing MissingKeys
	for _, sec := range schema {
		values, ok := cfg[sec.Name]
		var absent []Key
		for _, key := range sec.Keys {
			if !ok {
				absent = append(absent, key)
				continue
			}
			if _, present := values[key.Name]; !present {
				absent = append(absent, key)
			}
		}
		if len(absent) > 0 {
			missing = append(missing, MissingSection{Name: sec.Name, Keys: absent})
		}
	}
	return missing
}

// WriteSample writes an INI file containing every schema key with its
// placeholder. An existing file is never overwritten.
func WriteSample(path string, schema Schema) error {
	if fileutil.PathExists(path) {
		return fmt.Errorf("refusing to overwrite %s: %w", path, os.ErrExist)
	}

	file := ini.Empty()
	for _, sec := range schema {
		section, err := file.NewSection(sec.Name)
		if err != nil {
			return fmt.Errorf("creating section %s: %w", sec.Name, err)
		}
		for _, key := range sec.Keys {
			if _, err := section.NewKey(key.Name, key.Placeholder); err != nil {
				return fmt.Errorf("creating key %s.%s: %w", sec.Name, key.Name, err)
			}
		}
	}

	out, err := security.CreateSecureFile(path, security.PermPublicFile)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := file.WriteTo(out); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return out.Close()
}
