// Package suite loads line-canon test suites, runs them through the harness
// and records tamper-evident evidence of the results.
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
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/lattice-substrate/line-canon/harness"
	"github.com/lattice-substrate/line-canon/lccharset"
	"github.com/lattice-substrate/line-canon/lcerr"
	"github.com/lattice-substrate/line-canon/lcverify"
)

// Version is the only suite document version accepted.
const Version = "suite.v1"

// Suite is a named list of cases. Command and Env are defaults that each
// case may override.
type Suite struct {
	Version string            `yaml:"version" json:"version"`
	Name    string            `yaml:"name" json:"name"`
	Command []string          `yaml:"command,omitempty" json:"command,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Cases   []CaseSpec        `yaml:"cases" json:"cases"`
}

// CaseSpec is one case as written in a suite file. Empty charsets mean
// UTF-8 and an empty compare mode means exact.
type CaseSpec struct {
	Name          string            `yaml:"name" json:"name"`
	Command       []string          `yaml:"command,omitempty" json:"command,omitempty"`
	Env           map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Input         []string          `yaml:"input" json:"input"`
	Expected      []string          `yaml:"expected" json:"expected"`
	InputCharset  string            `yaml:"input_charset,omitempty" json:"input_charset,omitempty"`
	OutputCharset string            `yaml:"output_charset,omitempty" json:"output_charset,omitempty"`
	Compare       string            `yaml:"compare,omitempty" json:"compare,omitempty"`
}

// Load reads, decodes and validates a suite file. Files ending in .json
// are decoded as JSON, everything else as YAML. Unknown fields are
// rejected in both formats.
//
//nolint:gosec // suite path is explicit operator input.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lcerr.Wrap(lcerr.SourceUnavailable, -1, "read suite", err)
	}
	var s *Suite
	if strings.EqualFold(filepath.Ext(path), ".json") {
		s, err = decodeJSON(data)
	} else {
		s, err = decodeYAML(data)
	}
	if err != nil {
		return nil, lcerr.Wrap(lcerr.InvalidSuite, -1, "decode "+path, err)
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeJSON(data []byte) (*Suite, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode suite json: %w", err)
	}
	if err := ensureSingleJSONDocument(dec); err != nil {
		return nil, fmt.Errorf("decode suite json: %w", err)
	}
	return &s, nil
}

func decodeYAML(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Suite
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("suite yaml is empty")
		}
		return nil, fmt.Errorf("decode suite yaml: %w", err)
	}
	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("suite yaml must hold a single document")
	}
	return &s, nil
}

func ensureSingleJSONDocument(dec *json.Decoder) error {
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("unexpected trailing json content")
		}
		return fmt.Errorf("decode trailing json token: %w", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return lcerr.New(lcerr.InvalidSuite, -1, fmt.Sprintf(format, args...))
}

// Validate checks suite semantics: version, unique case names, a command
// for every case, resolvable charsets and compare modes, and rows that are
// valid UTF-8.
//
//nolint:gocyclo,cyclop // validation stays flat so each failure names its field.
func Validate(s *Suite) error {
	if s == nil {
		return invalid("suite is nil")
	}
	if s.Version != Version {
		return invalid("unsupported suite version %q, want %q", s.Version, Version)
	}
	if strings.TrimSpace(s.Name) == "" {
		return invalid("suite name is required")
	}
	if len(s.Cases) == 0 {
		return invalid("suite must include at least one case")
	}
	seen := make(map[string]struct{}, len(s.Cases))
	for i := range s.Cases {
		c := &s.Cases[i]
		if strings.TrimSpace(c.Name) == "" {
			return invalid("case[%d] name is required", i)
		}
		if _, ok := seen[c.Name]; ok {
			return invalid("duplicate case name: %s", c.Name)
		}
		seen[c.Name] = struct{}{}
		if len(s.command(c)) == 0 {
			return invalid("case %s: command is required", c.Name)
		}
		for _, cs := range []struct{ field, name string }{
			{"input_charset", c.InputCharset},
			{"output_charset", c.OutputCharset},
		} {
			if _, err := resolveCharset(cs.name); err != nil {
				return lcerr.Wrap(lcerr.InvalidSuite, -1, fmt.Sprintf("case %s: %s", c.Name, cs.field), err)
			}
		}
		if _, ok := lcverify.ComparatorByName(c.Compare); !ok {
			return invalid("case %s: unknown compare mode %q (want one of %s)", c.Name, c.Compare, strings.Join(lcverify.ComparatorNames(), ", "))
		}
		for _, rows := range []struct {
			field string
			rows  []string
		}{{"input", c.Input}, {"expected", c.Expected}} {
			for j, row := range rows.rows {
				if !utf8.ValidString(row) {
					return lcerr.New(lcerr.InvalidSuite, j, fmt.Sprintf("case %s: %s row is not valid UTF-8", c.Name, rows.field))
				}
			}
		}
	}
	return nil
}

func resolveCharset(name string) (*lccharset.Charset, error) {
	if strings.TrimSpace(name) == "" {
		return lccharset.UTF8, nil
	}
	return lccharset.Lookup(name)
}

func (s *Suite) command(c *CaseSpec) []string {
	if len(c.Command) != 0 {
		return c.Command
	}
	return s.Command
}

func (s *Suite) env(c *CaseSpec, global map[string]string) map[string]string {
	merged := make(map[string]string, len(s.Env)+len(c.Env)+len(global))
	for _, m := range []map[string]string{s.Env, c.Env, global} {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

// Case resolves the i-th case into a harness case and the program to run
// through r.
func (s *Suite) Case(i int, r harness.CommandRunner, global map[string]string) (harness.Case, harness.Program, error) {
	if i < 0 || i >= len(s.Cases) {
		return harness.Case{}, nil, invalid("case index %d out of range", i)
	}
	c := &s.Cases[i]
	in, err := resolveCharset(c.InputCharset)
	if err != nil {
		return harness.Case{}, nil, err
	}
	out, err := resolveCharset(c.OutputCharset)
	if err != nil {
		return harness.Case{}, nil, err
	}
	cmp, ok := lcverify.ComparatorByName(c.Compare)
	if !ok {
		return harness.Case{}, nil, invalid("case %s: unknown compare mode %q", c.Name, c.Compare)
	}
	hc := harness.Case{
		Name:          c.Name,
		Input:         c.Input,
		Expected:      c.Expected,
		InputCharset:  in,
		OutputCharset: out,
		Comparator:    cmp,
	}
	return hc, harness.CommandWith(r, s.command(c), s.env(c, global)), nil
}
