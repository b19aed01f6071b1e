package suite

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	cyberphone "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"github.com/lattice-substrate/line-canon/lcverify"
)

const EvidenceSchemaVersion = "evidence.v1"

// Evidence is the machine-consumed record of one suite run.
type Evidence struct {
	SchemaVersion   string         `json:"schema_version"`
	SuiteName       string         `json:"suite_name"`
	SuiteSHA256     string         `json:"suite_sha256"`
	GeneratedAtUTC  string         `json:"generated_at_utc"`
	Orchestrator    string         `json:"orchestrator"`
	CaseCount       int            `json:"case_count"`
	Passed          bool           `json:"passed"`
	Cases           []CaseEvidence `json:"cases"`
	AggregateSHA256 string         `json:"aggregate_sha256"`
}

// CaseEvidence is the outcome of one case. Everything except DurationMicros
// is covered by the aggregate digest, so two runs of the same suite against
// the same program produce the same aggregate.
type CaseEvidence struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	OffendingIndex int    `json:"offending_index"`
	Message        string `json:"message"`
	FailureClass   string `json:"failure_class,omitempty"`
	OutputSHA256   string `json:"output_sha256"`
	DurationMicros int64  `json:"duration_us"`
}

// Canonical returns the RFC 8785 canonical JSON form of v.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	out, err := cyberphone.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// Digest is the hex SHA-256 of the canonical JSON form of v.
func Digest(v any) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// aggregateDigest covers every case field except timing.
func aggregateDigest(cases []CaseEvidence) (string, error) {
	stable := make([]CaseEvidence, len(cases))
	for i, c := range cases {
		c.DurationMicros = 0
		stable[i] = c
	}
	return Digest(stable)
}

// WriteEvidence writes e as canonical JSON followed by a newline.
func WriteEvidence(path string, e *Evidence) error {
	if e == nil {
		return fmt.Errorf("evidence is nil")
	}
	data, err := Canonical(e)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write evidence file: %w", err)
	}
	return nil
}

// LoadEvidence reads one evidence document, rejecting unknown fields.
//
//nolint:gosec // evidence path is explicit operator input.
func LoadEvidence(path string) (*Evidence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var e Evidence
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	if err := ensureSingleJSONDocument(dec); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	return &e, nil
}

// ValidateEvidence checks that e is a complete, internally consistent
// record of a run of s.
//
//nolint:gocyclo,cyclop // each mismatch is reported on its own.
func ValidateEvidence(e *Evidence, s *Suite) error {
	if e == nil {
		return fmt.Errorf("evidence is nil")
	}
	if s == nil {
		return fmt.Errorf("suite is required")
	}
	if e.SchemaVersion != EvidenceSchemaVersion {
		return fmt.Errorf("unsupported schema_version %q", e.SchemaVersion)
	}
	if e.SuiteName != s.Name {
		return fmt.Errorf("suite mismatch: evidence=%q suite=%q", e.SuiteName, s.Name)
	}
	want, err := Digest(s)
	if err != nil {
		return err
	}
	if e.SuiteSHA256 != want {
		return fmt.Errorf("suite_sha256 mismatch")
	}
	if e.CaseCount != len(e.Cases) || e.CaseCount != len(s.Cases) {
		return fmt.Errorf("case_count mismatch: recorded=%d cases=%d suite=%d", e.CaseCount, len(e.Cases), len(s.Cases))
	}
	passed := true
	for i, c := range e.Cases {
		if c.Name != s.Cases[i].Name {
			return fmt.Errorf("case %d name mismatch: got=%q want=%q", i, c.Name, s.Cases[i].Name)
		}
		switch c.State {
		case lcverify.Success.String():
			if c.OffendingIndex != lcverify.NoIndex {
				return fmt.Errorf("case %s: success must not carry an offending index", c.Name)
			}
		case lcverify.Failure.String():
			passed = false
			if c.OffendingIndex < lcverify.NoIndex {
				return fmt.Errorf("case %s: invalid offending index %d", c.Name, c.OffendingIndex)
			}
		case lcverify.Error.String():
			passed = false
			if c.OffendingIndex != lcverify.NoIndex {
				return fmt.Errorf("case %s: error must not carry an offending index", c.Name)
			}
		default:
			return fmt.Errorf("case %s: invalid state %q", c.Name, c.State)
		}
		if c.DurationMicros < 0 {
			return fmt.Errorf("case %s: negative duration", c.Name)
		}
	}
	if e.Passed != passed {
		return fmt.Errorf("passed flag mismatch: recorded=%t derived=%t", e.Passed, passed)
	}
	agg, err := aggregateDigest(e.Cases)
	if err != nil {
		return err
	}
	if e.AggregateSHA256 != agg {
		return fmt.Errorf("aggregate digest mismatch")
	}
	return nil
}
