package repo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grithq/grit/pkg/storage"
)

const configPath = ".git/config"

// Config is a minimal INI model: sections with an optional subsection
// label, each holding ordered key/value pairs. It covers what .git/config
// needs, remotes and core settings, not the full Git syntax.
type Config struct {
	sections []*configSection
}

type configSection struct {
	name   string
	label  string
	keys   []string
	values map[string]string
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{}
}

func (c *Config) section(name, label string) *configSection {
	for _, s := range c.sections {
		if s.name == name && s.label == label {
			return s
		}
	}
	return nil
}

// Get returns the value for a key in the named section, if present.
func (c *Config) Get(name, label, key string) (string, bool) {
	s := c.section(name, label)
	if s == nil {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

// Set stores a key/value pair, creating the section as needed.
func (c *Config) Set(name, label, key, value string) {
	s := c.section(name, label)
	if s == nil {
		s = &configSection{name: name, label: label, values: make(map[string]string)}
		c.sections = append(c.sections, s)
	}
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// RemoveSection drops a section and its keys. Removing a missing section
// is a no-op.
func (c *Config) RemoveSection(name, label string) {
	for i, s := range c.sections {
		if s.name == name && s.label == label {
			c.sections = append(c.sections[:i], c.sections[i+1:]...)
			return
		}
	}
}

// Labels lists the subsection labels of the named section, sorted.
func (c *Config) Labels(name string) []string {
	var labels []string
	for _, s := range c.sections {
		if s.name == name && s.label != "" {
			labels = append(labels, s.label)
		}
	}
	sort.Strings(labels)
	return labels
}

// Marshal renders the configuration in Git's INI dialect.
func (c *Config) Marshal() []byte {
	var b strings.Builder
	for _, s := range c.sections {
		if s.label == "" {
			fmt.Fprintf(&b, "[%s]\n", s.name)
		} else {
			fmt.Fprintf(&b, "[%s %q]\n", s.name, s.label)
		}
		for _, key := range s.keys {
			fmt.Fprintf(&b, "\t%s = %s\n", key, s.values[key])
		}
	}
	return []byte(b.String())
}

// ParseConfig reads the INI dialect Marshal produces. Unknown lines fail.
func ParseConfig(data []byte) (*Config, error) {
	cfg := NewConfig()
	var name, label string
	haveSection := false

	for lineNo, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			header := strings.TrimSpace(line[1 : len(line)-1])
			name, label = header, ""
			if idx := strings.IndexByte(header, ' '); idx >= 0 {
				name = header[:idx]
				rest := strings.TrimSpace(header[idx+1:])
				if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
					return nil, fmt.Errorf("config line %d: malformed subsection %q", lineNo+1, header)
				}
				label = rest[1 : len(rest)-1]
			}
			haveSection = true
			continue
		}
		if !haveSection {
			return nil, fmt.Errorf("config line %d: key outside section", lineNo+1)
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config line %d: malformed entry %q", lineNo+1, line)
		}
		cfg.Set(name, label, strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return cfg, nil
}

// LoadConfig reads .git/config. A missing file yields an empty config.
func LoadConfig(st storage.Storage) (*Config, error) {
	data, err := st.ReadFile(configPath)
	if err != nil {
		if storage.IsNotFound(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return ParseConfig(data)
}

// SaveConfig writes .git/config.
func SaveConfig(st storage.Storage, cfg *Config) error {
	if err := st.WriteFile(configPath, cfg.Marshal()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Config loads the repository configuration.
func (r *Repo) Config() (*Config, error) {
	return LoadConfig(r.st)
}

// SaveConfig persists the repository configuration.
func (r *Repo) SaveConfig(cfg *Config) error {
	return SaveConfig(r.st, cfg)
}
