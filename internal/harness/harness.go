package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/registry"
	"github.com/roach88/domainreg/internal/store"
)

// defaultFlowToken prefixes flow tokens when a scenario sets none.
const defaultFlowToken = "test-flow"

// Harness executes one scenario against a fresh registry.
type Harness struct {
	reg     *registry.Registry
	lastSeq int64
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh backend: an in-memory store, or a SQLite file in a
// temporary directory that is removed afterwards. The returned error covers
// infrastructure failures only; expectation and assertion failures land in
// Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	backend, cleanup, err := openBackend(scenario.Backend)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	prefix := scenario.FlowToken
	if prefix == "" {
		prefix = defaultFlowToken
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &Harness{
		reg: registry.New(backend,
			registry.WithLogger(logger),
			registry.WithFlowTokens(registry.NewSequenceGenerator(prefix)),
		),
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range EvaluateAssertions(ctx, h.reg, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func openBackend(kind string) (store.Backend, func(), error) {
	if kind != "sqlite" {
		m := store.NewMemory()
		return m, func() { m.Close() }, nil
	}

	dir, err := os.MkdirTemp("", "domainreg-scenario-")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	return st, func() {
		st.Close()
		os.RemoveAll(dir)
	}, nil
}

// executeFlow runs each step, records its outcome and the events it emitted,
// and checks the outcome against the step's expectation.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		st := StepTrace{Step: i + 1, Op: step.Op}

		opErr := h.execute(ctx, step, &st)
		switch {
		case opErr == nil:
			st.Outcome = "ok"
		case registry.CodeOf(opErr) != "":
			st.Outcome = string(registry.CodeOf(opErr))
		default:
			return fmt.Errorf("flow[%d] %s: %w", i, step.Op, opErr)
		}

		evs, err := h.reg.Events(ctx, h.lastSeq, 0)
		if err != nil {
			return fmt.Errorf("flow[%d]: read events: %w", i, err)
		}
		if len(evs) > 0 {
			h.lastSeq = evs[len(evs)-1].Seq
		}
		st.Events = evs
		result.Trace = append(result.Trace, st)

		checkExpectation(i, step, st, result)
	}
	return nil
}

func (h *Harness) execute(ctx context.Context, step FlowStep, st *StepTrace) error {
	switch step.Op {
	case OpInitialize:
		return h.reg.Initialize(ctx)

	case OpCreate:
		owner, _ := OwnerKey(step.Owner)
		signer := step.Signer
		if signer == "" {
			signer = step.Owner
		}
		_, priv := OwnerKey(signer)
		id, err := h.reg.CreateDomain(ctx, registry.CreateRequest{
			Owner:      owner,
			Name:       step.Name,
			DomainType: step.Type,
			Signature:  registry.SignCreate(priv, step.Type, step.Name),
		})
		if err == nil {
			st.ID = &id
		}
		return err

	case OpUpdate:
		err := h.reg.UpdateDomain(ctx, step.ID, step.Type)
		if err == nil {
			id := step.ID
			st.ID = &id
		}
		return err
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

func checkExpectation(index int, step FlowStep, st StepTrace, result *Result) {
	want := "ok"
	if step.Expect != nil && step.Expect.Error != "" {
		want = step.Expect.Error
	}
	if st.Outcome != want {
		result.AddError(fmt.Sprintf("flow[%d] %s: outcome %s, expected %s", index, step.Op, st.Outcome, want))
		return
	}

	wantEvents := 0
	if want == "ok" && step.Op != OpInitialize {
		wantEvents = 1
	}
	if len(st.Events) != wantEvents {
		result.AddError(fmt.Sprintf("flow[%d] %s: emitted %d events, expected %d", index, step.Op, len(st.Events), wantEvents))
	}

	if step.Expect != nil && step.Expect.ID != nil && st.ID != nil && *st.ID != *step.Expect.ID {
		result.AddError(fmt.Sprintf("flow[%d] create: allocated id %d, expected %d", index, *st.ID, *step.Expect.ID))
	}
}

// eventKinds lists the kinds of evs in order.
func eventKinds(evs []ir.Event) []string {
	kinds := make([]string, len(evs))
	for i, ev := range evs {
		kinds[i] = string(ev.Kind)
	}
	return kinds
}
