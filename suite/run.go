package suite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lattice-substrate/line-canon/harness"
	"github.com/lattice-substrate/line-canon/lcerr"
	"github.com/lattice-substrate/line-canon/lcverify"
)

// RunOptions configures a suite run.
type RunOptions struct {
	// Runner executes case commands; nil means harness.OSRunner.
	Runner harness.CommandRunner
	// Env is merged over suite and case environments.
	Env          map[string]string
	Orchestrator string
	Logger       *slog.Logger
	Now          func() time.Time
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// Run executes every case of s in order and returns the evidence. Case
// failures and errors are recorded, not returned; the error result is for
// an invalid suite or an evidence encoding fault.
func Run(ctx context.Context, s *Suite, opts RunOptions) (*Evidence, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	log := orDefault(opts.Logger).With("suite", s.Name)
	runner := opts.Runner
	if runner == nil {
		runner = harness.OSRunner{}
	}
	now := opts.Now
	if now == nil {
		now = wallClockNow
	}
	if opts.Orchestrator == "" {
		opts.Orchestrator = "line-canon"
	}

	suiteSHA, err := Digest(s)
	if err != nil {
		return nil, lcerr.Wrap(lcerr.InternalError, -1, "digest suite", err)
	}
	e := &Evidence{
		SchemaVersion:  EvidenceSchemaVersion,
		SuiteName:      s.Name,
		SuiteSHA256:    suiteSHA,
		GeneratedAtUTC: now().UTC().Format(time.RFC3339Nano),
		Orchestrator:   opts.Orchestrator,
		CaseCount:      len(s.Cases),
		Passed:         true,
	}

	log.Debug("suite started", "cases", len(s.Cases))
	for i := range s.Cases {
		c, p, err := s.Case(i, runner, opts.Env)
		if err != nil {
			return nil, err
		}
		r := harness.Run(ctx, c, p)
		ce, err := caseEvidence(c.Name, r)
		if err != nil {
			return nil, err
		}
		e.Cases = append(e.Cases, ce)
		if !r.OK() {
			e.Passed = false
		}
		logCase(log, ce, r)
	}

	e.AggregateSHA256, err = aggregateDigest(e.Cases)
	if err != nil {
		return nil, lcerr.Wrap(lcerr.InternalError, -1, "digest evidence", err)
	}
	log.Info("suite finished", "passed", e.Passed, "aggregate_sha256", e.AggregateSHA256)
	return e, nil
}

func caseEvidence(name string, r *lcverify.Result) (CaseEvidence, error) {
	out, err := Digest(r.Actual())
	if err != nil {
		return CaseEvidence{}, lcerr.Wrap(lcerr.InternalError, -1, fmt.Sprintf("digest output of %s", name), err)
	}
	ce := CaseEvidence{
		Name:           name,
		State:          r.State().String(),
		OffendingIndex: r.Index(),
		Message:        r.Message(),
		OutputSHA256:   out,
		DurationMicros: r.Duration().Microseconds(),
	}
	if class, ok := lcerr.ClassOf(r.Err()); ok {
		ce.FailureClass = string(class)
	}
	return ce, nil
}

func logCase(log *slog.Logger, ce CaseEvidence, r *lcverify.Result) {
	attrs := []any{"case", ce.Name, "state", ce.State, "duration", r.Duration()}
	switch r.State() {
	case lcverify.Success:
		log.Info("case passed", attrs...)
	case lcverify.Failure:
		log.Warn("case failed", append(attrs, "index", ce.OffendingIndex, "message", ce.Message)...)
	default:
		log.Error("case errored", append(attrs, "error", r.Err())...)
	}
}

//nolint:forbidigo // default clock when none is injected.
func wallClockNow() time.Time {
	return time.Now()
}
