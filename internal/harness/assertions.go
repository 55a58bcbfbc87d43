package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/registry"
)

// AssertionError is returned when an assertion fails.
// It carries the event log so the failure can be read in context.
type AssertionError struct {
	Type     string     // assertion type
	Expected string     // human-readable expected outcome
	Actual   string     // human-readable actual outcome
	Events   []ir.Event // full event log
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nEvent log:\n")
	for _, ev := range e.Events {
		fmt.Fprintf(&buf, "  [%d] %s id=%d\n", ev.Seq, ev.Kind, ev.Payload.DomainID())
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure. An empty slice means all assertions passed.
func EvaluateAssertions(ctx context.Context, reg *registry.Registry, result *Result, assertions []Assertion) []string {
	var failures []string
	log := result.Events()
	for i, a := range assertions {
		if err := evaluate(ctx, reg, log, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(ctx context.Context, reg *registry.Registry, log []ir.Event, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Events: log}
	}

	switch a.Type {
	case AssertEventCount:
		n := 0
		for _, ev := range log {
			if a.Kind == "" || string(ev.Kind) == a.Kind {
				n++
			}
		}
		if n != a.Count {
			what := "events"
			if a.Kind != "" {
				what = a.Kind + " events"
			}
			return fail(fmt.Sprintf("%d %s", a.Count, what), fmt.Sprintf("%d %s", n, what))
		}

	case AssertEventOrder:
		got := eventKinds(log)
		if !slices.Equal(got, a.Kinds) {
			return fail(fmt.Sprintf("%v", a.Kinds), fmt.Sprintf("%v", got))
		}

	case AssertRecord:
		rec, err := reg.Record(ctx, a.ID)
		if err != nil {
			return fail(fmt.Sprintf("record %d", a.ID), err.Error())
		}
		return matchRecord(rec, a.Expect, fail)

	case AssertRecordAbsent:
		rec, err := reg.Record(ctx, a.ID)
		if err == nil {
			return fail(fmt.Sprintf("no record %d", a.ID), fmt.Sprintf("%+v", rec))
		}
		if !registry.IsRecordNotFound(err) {
			return err
		}

	case AssertCounter:
		c, ok, err := reg.Counter(ctx)
		if err != nil {
			return err
		}
		if !ok || !c.Initialized {
			return fail(fmt.Sprintf("next_id %d", *a.NextID), "counter not initialized")
		}
		if c.NextID != *a.NextID {
			return fail(fmt.Sprintf("next_id %d", *a.NextID), fmt.Sprintf("next_id %d", c.NextID))
		}

	case AssertReplay:
		report, err := reg.Verify(ctx)
		if err != nil {
			return err
		}
		if !report.OK() {
			return fail("replay matches state", strings.Join(report.Mismatches, "; "))
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// matchRecord compares the fields named in expect. owner is an alias.
func matchRecord(rec ir.Record, expect map[string]any, fail func(string, string) error) error {
	for _, field := range sortedFields(expect) {
		want := expect[field]
		var ok bool
		var got any
		switch field {
		case "owner":
			alias, isString := want.(string)
			pk, _ := OwnerKey(alias)
			ok = isString && rec.Owner == pk
			got = rec.Owner.String()
		case "name":
			ok = want == rec.Name
			got = rec.Name
		case "dom_type":
			n, isInt := want.(int)
			ok = isInt && n == int(rec.DomType)
			got = rec.DomType
		default:
			return fmt.Errorf("record: unknown field %q", field)
		}
		if !ok {
			return fail(fmt.Sprintf("record %d %s = %v", rec.ID, field, want), fmt.Sprintf("%v", got))
		}
	}
	return nil
}

func sortedFields(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
