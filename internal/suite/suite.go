// Package suite loads test suites from JSON or YAML files and watches them
// for changes.
package suite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"testpilot/internal/types"

	"gopkg.in/yaml.v3"
)

// Suite is a named list of test cases plus the page they run against.
type Suite struct {
	Name      string           `json:"name,omitempty" yaml:"name,omitempty"`
	URL       string           `json:"url,omitempty" yaml:"url,omitempty"`
	BaseURL   string           `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Username  string           `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string           `json:"password,omitempty" yaml:"password,omitempty"`
	Generate  bool             `json:"generate,omitempty" yaml:"generate,omitempty"`
	TestCases []types.TestCase `json:"testCases" yaml:"testCases"`
}

// Load reads and validates a suite file. The format follows the extension;
// unknown extensions are sniffed.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	s, err := Parse(data, formatOf(path, data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes a suite in format "json" or "yaml". A bare list of test cases
// is accepted in both formats. Unknown keys are rejected. Credentials may
// reference environment variables as $VAR or ${VAR}.
func Parse(data []byte, format string) (*Suite, error) {
	var s Suite
	var err error
	switch format {
	case "json":
		err = parseJSON(data, &s)
	case "yaml":
		err = parseYAML(data, &s)
	default:
		return nil, fmt.Errorf("unsupported suite format %q", format)
	}
	if err != nil {
		return nil, err
	}

	s.Username = os.ExpandEnv(s.Username)
	s.Password = os.ExpandEnv(s.Password)

	if len(s.TestCases) == 0 && !s.Generate {
		return nil, errors.New("suite has no test cases")
	}
	if err := types.ValidateAll(s.TestCases); err != nil {
		return nil, err
	}
	return &s, nil
}

func parseJSON(data []byte, s *Suite) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return decodeJSON(trimmed, &s.TestCases)
	}
	return decodeJSON(trimmed, s)
}

func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON suite: %w", err)
	}
	return nil
}

func parseYAML(data []byte, s *Suite) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("invalid YAML suite: %w", err)
	}
	var out any = s
	if len(root.Content) > 0 && root.Content[0].Kind == yaml.SequenceNode {
		out = &s.TestCases
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid YAML suite: %w", err)
	}
	return nil
}

func formatOf(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return "json"
	}
	return "yaml"
}
