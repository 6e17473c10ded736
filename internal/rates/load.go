package rates

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk YAML layout of a rate table
type tableFile struct {
	Currency string          `yaml:"currency"`
	Sizes    map[string]Rate `yaml:"sizes"`
}

// Load reads a rate table file. The format is picked from the extension:
// .yaml/.yml or .ini.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".ini":
		return LoadINI(path)
	default:
		return nil, fmt.Errorf("unsupported rate table format: %s", path)
	}
}

// LoadYAML reads a YAML rate table:
//
//	sizes:
//	  Small:
//	    hourly: "0.10"
//	    monthly: "50"
func LoadYAML(path string) (*Table, error) {
	// #nosec G304 -- rate table path comes from the operator's configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate table: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML parses YAML rate table content
func ParseYAML(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rate table: %w", err)
	}
	return NewTable(file.Sizes), nil
}

// LoadINI reads an INI rate table where every section is a size class:
//
//	[Small]
//	hourly = 0.10
//	monthly = 50
func LoadINI(path string) (*Table, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate table: %w", err)
	}
	return fromINI(file), nil
}

// ParseINI parses INI rate table content
func ParseINI(data []byte) (*Table, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate table: %w", err)
	}
	return fromINI(file), nil
}

func fromINI(file *ini.File) *Table {
	entries := make(map[string]Rate)
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		entries[section.Name()] = Rate{
			Hourly:  section.Key("hourly").String(),
			Monthly: section.Key("monthly").String(),
		}
	}
	return NewTable(entries)
}

// FromViper reads an inline rate table stored under key in v, e.g.
// rates.sizes in config.yaml. Viper folds key case and converts unquoted
// numbers, so a YAML or JSON config file is decoded again with yaml.v3 to
// keep size names and rates as written. Tables that only exist in viper
// (no config file, or another file format) are read through viper.
func FromViper(v *viper.Viper, key string) (*Table, error) {
	if path := v.ConfigFileUsed(); path != "" && literalFormat(path) {
		// #nosec G304 -- path is the config file viper already loaded
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		table, found, err := ParseConfigYAML(data, key)
		if err != nil {
			return nil, err
		}
		if found {
			return table, nil
		}
	}

	entries := make(map[string]Rate)
	if !v.IsSet(key) {
		return NewTable(entries), nil
	}
	if err := v.UnmarshalKey(key, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return NewTable(entries), nil
}

// ParseConfigYAML decodes the rate table at the dotted key path of YAML
// config content. Path segments match keys case-insensitively like viper
// does. found is false when the path is absent.
func ParseConfigYAML(data []byte, key string) (table *Table, found bool, err error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("failed to parse config: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, false, nil
	}

	node := doc.Content[0]
	for _, part := range strings.Split(key, ".") {
		if node = mappingValue(node, part); node == nil {
			return nil, false, nil
		}
	}

	entries := make(map[string]Rate)
	if err := node.Decode(&entries); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return NewTable(entries), true, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if !strings.EqualFold(node.Content[i].Value, key) {
			continue
		}
		value := node.Content[i+1]
		if value.Kind == yaml.AliasNode {
			value = value.Alias
		}
		return value
	}
	return nil
}

// literalFormat reports whether yaml.v3 can read the config file at path
func literalFormat(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// SampleYAML is written by "init rates"
const SampleYAML = `# cloudtally rate table
# Every size class maps to an hourly and a monthly rate. Values are printed
# verbatim; monthly values are summed into the report totals.
currency: USD
sizes:
  ExtraSmall:
    hourly: "0.02"
    monthly: "15"
  Small:
    hourly: "0.08"
    monthly: "60"
  Medium:
    hourly: "0.16"
    monthly: "120"
  Large:
    hourly: "0.32"
    monthly: "240"
  ExtraLarge:
    hourly: "0.64"
    monthly: "480"
`
