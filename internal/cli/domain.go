package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
	"github.com/roach88/domainreg/internal/registry"
)

type initResult struct {
	NextID   uint64 `json:"next_id"`
	Database string `json:"db"`
}

func (r initResult) String() string {
	return fmt.Sprintf("Registry initialized in %s (next id %d)", r.Database, r.NextID)
}

// recordView is a record as shown to users, with its derived key and
// allocated size.
type recordView struct {
	ID         uint64    `json:"id"`
	Key        string    `json:"key"`
	Owner      ir.Pubkey `json:"owner"`
	Name       string    `json:"name"`
	DomainType uint8     `json:"domain_type"`
	Size       int       `json:"size"`
}

func newRecordView(rec ir.Record) recordView {
	return recordView{
		ID:         rec.ID,
		Key:        layout.DeriveKey(rec.ID).String(),
		Owner:      rec.Owner,
		Name:       rec.Name,
		DomainType: rec.DomType,
		Size:       layout.RecordSize(len(rec.Name)),
	}
}

func (r recordView) String() string {
	return fmt.Sprintf("Domain %d\n  key:   %s\n  owner: %s\n  name:  %q\n  type:  %d\n  size:  %d bytes",
		r.ID, r.Key, r.Owner, r.Name, r.DomainType, r.Size)
}

type updateResult struct {
	ID         uint64 `json:"id"`
	DomainType uint8  `json:"domain_type"`
}

func (r updateResult) String() string {
	return fmt.Sprintf("Updated domain %d (type %d)", r.ID, r.DomainType)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the id counter",
		Long: `Create the registry counter with next id 0.

Initialization happens once per database. A second init fails with
ALREADY_INITIALIZED and leaves the counter unchanged.

Example:
  domainreg init --db ./registry.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withApp(cmd, opts, appOptions{}, func(ctx context.Context, a *app) error {
		if err := a.reg.Initialize(ctx); err != nil {
			return f.Fail("initialize", err)
		}
		c, _, err := a.reg.Counter(ctx)
		if err != nil {
			return f.Fail("initialize", err)
		}
		return f.Success(initResult{NextID: c.NextID, Database: a.cfg.DB})
	})
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	KeyFile    string
	Name       string
	DomainType uint8
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a domain record",
		Long: `Create a domain owned by the key in --key.

The request is signed locally with the owner key. The new record is stored
at the key derived from the next id, and a DomainCreated event is appended.

Examples:
  domainreg create --db ./registry.db --key owner.key --name example --type 1
  domainreg create --db ./registry.db --key owner.key --name example --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.KeyFile, "key", "k", "", "owner key file from keygen (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "domain name (required)")
	cmd.Flags().Uint8Var(&opts.DomainType, "type", 0, "domain type byte")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runCreate(opts *CreateOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	priv, err := readKeyFile(opts.KeyFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read key", err)
	}
	req := registry.NewCreateRequest(priv, opts.Name, opts.DomainType)
	f.VerboseLog("owner %s", req.Owner)

	return withApp(cmd, opts.RootOptions, appOptions{}, func(ctx context.Context, a *app) error {
		id, err := a.reg.CreateDomain(ctx, req)
		if err != nil {
			return f.Fail("create", err)
		}
		return f.Success(newRecordView(ir.Record{
			ID:      id,
			Owner:   req.Owner,
			Name:    req.Name,
			DomType: req.DomainType,
		}))
	})
}

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	DomainType uint8
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a domain's type",
		Long: `Set the type byte of domain <id> and append a DomainUpdated event.

Only the type changes; owner and name are fixed at creation.

Example:
  domainreg update 0 --type 7 --db ./registry.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts, args[0], cmd)
		},
	}

	cmd.Flags().Uint8Var(&opts.DomainType, "type", 0, "new domain type byte (required)")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runUpdate(opts *UpdateOptions, rawID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withApp(cmd, opts.RootOptions, appOptions{}, func(ctx context.Context, a *app) error {
		if err := a.reg.UpdateDomain(ctx, id, opts.DomainType); err != nil {
			return f.Fail("update", err)
		}
		return f.Success(updateResult{ID: id, DomainType: opts.DomainType})
	})
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "show [<id>]",
		Short: "Show a domain record",
		Long: `Look up domain <id> at its derived key.

The record can also be addressed by the hex key that show prints.

Example:
  domainreg show 0 --db ./registry.db
  domainreg show --key 0000000000000000 --db ./registry.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := showTarget(args, key)
			if err != nil {
				return err
			}
			return runShow(rootOpts, id, cmd)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Derived record key in hex, instead of <id>")
	return cmd
}

// showTarget resolves exactly one of a positional id or --key to an id.
func showTarget(args []string, key string) (uint64, error) {
	switch {
	case len(args) == 1 && key != "":
		return 0, NewExitError(ExitCommandError, "pass either <id> or --key, not both")
	case len(args) == 1:
		return parseID(args[0])
	case key != "":
		k, err := layout.ParseKey(key)
		if err != nil {
			return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid key %q", key), err)
		}
		return k.ID(), nil
	default:
		return 0, NewExitError(ExitCommandError, "pass <id> or --key")
	}
}

func runShow(opts *RootOptions, id uint64, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withApp(cmd, opts, appOptions{}, func(ctx context.Context, a *app) error {
		rec, err := a.reg.Record(ctx, id)
		if err != nil {
			return f.Fail("show", err)
		}
		return f.Success(newRecordView(rec))
	})
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid id %q", raw), err)
	}
	return id, nil
}
