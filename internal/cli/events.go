package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/domainreg/internal/events"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	After int64
	Limit int
}

type eventsResult struct {
	Events []events.Envelope `json:"events"`
	Next   int64             `json:"next"`
}

func (r eventsResult) String() string {
	if len(r.Events) == 0 {
		return "No events."
	}
	var b strings.Builder
	for i, env := range r.Events {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d  %-13s  %s  flow=%s  id=%s", env.Seq, env.Kind, env.Payload, env.FlowToken, shortID(env.ID))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event log",
		Long: `Print committed events in seq order.

--after skips events up to and including that seq; pass the "next" value
of a previous call to resume.

Examples:
  domainreg events --db ./registry.db
  domainreg events --db ./registry.db --after 10 --limit 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum number of events")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.After < 0 {
		return NewExitError(ExitCommandError, "--after must not be negative")
	}
	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, "--limit must be positive")
	}

	return withApp(cmd, opts.RootOptions, appOptions{}, func(ctx context.Context, a *app) error {
		evs, err := a.reg.Events(ctx, opts.After, opts.Limit)
		if err != nil {
			return f.Fail("events", err)
		}
		result := eventsResult{Events: make([]events.Envelope, 0, len(evs)), Next: opts.After}
		for _, ev := range evs {
			env, err := events.NewEnvelope(ev)
			if err != nil {
				return f.Fail("events", err)
			}
			result.Events = append(result.Events, env)
			result.Next = env.Seq
		}
		return f.Success(result)
	})
}
