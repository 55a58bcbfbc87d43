package cli

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/registry"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Out   string
	Force bool
}

type keygenResult struct {
	Owner ir.Pubkey `json:"owner"`
	Path  string    `json:"path"`
}

func (r keygenResult) String() string {
	return fmt.Sprintf("Wrote key %s\nOwner: %s", r.Path, r.Owner)
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an owner key",
		Long: `Generate an ed25519 owner key for signing domain creations.

The key file holds the hex-encoded 32-byte seed and is written with mode
0600. The public key printed on success is the owner identity.

Examples:
  domainreg keygen --out owner.key
  domainreg keygen --out owner.key --force --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "key file to write (required)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing key file")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runKeygen(opts *KeygenOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	owner, priv, err := registry.GenerateKey(rand.Reader)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to generate key", err)
	}
	if err := writeKeyFile(opts.Out, priv, opts.Force); err != nil {
		return WrapExitError(ExitCommandError, "failed to write key", err)
	}
	return f.Success(keygenResult{Owner: owner, Path: opts.Out})
}

// writeKeyFile stores priv's seed as hex. Existing files are kept unless
// force is set.
func writeKeyFile(path string, priv ed25519.PrivateKey, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return err
	}
	if _, err := fmt.Fprintln(file, hex.EncodeToString(priv.Seed())); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// readKeyFile loads a key written by writeKeyFile.
func readKeyFile(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	_, priv, err := registry.KeyFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return priv, nil
}
