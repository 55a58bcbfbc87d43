package cli

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/domainreg/internal/store"
)

// ReplayResult holds the outcome of the replay command.
type ReplayResult struct {
	*store.ReplayReport
	Deterministic bool `json:"deterministic"`
}

// OK reports whether state matched the log and both replays agreed.
func (r ReplayResult) OK() bool {
	return r.Deterministic && r.ReplayReport.OK()
}

func (r ReplayResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Replayed %d events (%d created, %d updated), next id %d\n",
		r.Events, r.Created, r.Updated, r.NextID)
	for _, m := range r.Mismatches {
		fmt.Fprintf(&b, "  ✗ %s\n", m)
	}
	switch {
	case !r.Deterministic:
		b.WriteString("✗ Replay is not deterministic")
	case !r.ReplayReport.OK():
		fmt.Fprintf(&b, "✗ %d mismatch(es) between log and state", len(r.Mismatches))
	default:
		b.WriteString("✓ State matches the event log")
	}
	return b.String()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay event log and verify state",
		Long: `Replay the event log and verify it against stored state.

The log is read in seq order and state is rebuilt from it: ids must be
allocated from 0 without gaps, event ids must match their content, and the
stored counter and records must equal the rebuilt ones. The replay runs
twice and both reports must agree.

Exit codes:
  0 - State matches the log
  1 - Mismatch or non-deterministic replay
  2 - Command error (database not found, etc.)

Examples:
  domainreg replay --db ./registry.db
  domainreg replay --db ./registry.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	return withApp(cmd, opts, appOptions{}, func(ctx context.Context, a *app) error {
		first, err := a.reg.Verify(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "first replay failed", err)
		}
		second, err := a.reg.Verify(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "second replay failed", err)
		}

		result := ReplayResult{
			ReplayReport:  first,
			Deterministic: reflect.DeepEqual(first, second),
		}
		if !result.OK() {
			if opts.Format == "json" {
				if err := f.Error("E_REPLAY_MISMATCH", "stored state does not match the event log", result); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(f.Writer, result)
			}
			return NewExitError(ExitFailure, "replay verification failed")
		}
		return f.Success(result)
	})
}
