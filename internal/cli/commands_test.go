package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/domainreg/internal/events"
	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
	"github.com/roach88/domainreg/internal/registry"
	"github.com/roach88/domainreg/internal/store"
)

// decodeData unmarshals the data field of a JSON CLIResponse.
func decodeData(t *testing.T, out string, dst any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, dst), out)
}

// decodeError returns the error code of a JSON CLIResponse.
func decodeError(t *testing.T, out string) string {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "error", resp.Status, out)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

type testEnv struct {
	db  string
	key string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{db: filepath.Join(dir, "reg.db"), key: filepath.Join(dir, "owner.key")}
	_, _, err := execute(t, "keygen", "--out", env.key)
	require.NoError(t, err)
	return env
}

func TestLifecycle(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := execute(t, "init", "--db", env.db)
	require.NoError(t, err)
	assert.Contains(t, out, "Registry initialized")

	priv, err := readKeyFile(env.key)
	require.NoError(t, err)

	for i, name := range []string{"alpha", "beta"} {
		out, _, err = execute(t, "create", "--db", env.db, "--key", env.key, "--name", name, "--type", "3", "--format", "json")
		require.NoError(t, err)

		var view recordView
		decodeData(t, out, &view)
		assert.Equal(t, uint64(i), view.ID)
		assert.Equal(t, layout.DeriveKey(uint64(i)).String(), view.Key)
		assert.Equal(t, name, view.Name)
		assert.Equal(t, uint8(3), view.DomainType)
		assert.Equal(t, layout.RecordSize(len(name)), view.Size)
		assert.Equal(t, registry.PubkeyOf(priv), view.Owner)
	}

	_, _, err = execute(t, "update", "0", "--type", "9", "--db", env.db)
	require.NoError(t, err)

	out, _, err = execute(t, "show", "0", "--db", env.db, "--format", "json")
	require.NoError(t, err)
	var view recordView
	decodeData(t, out, &view)
	assert.Equal(t, uint8(9), view.DomainType)
	assert.Equal(t, "alpha", view.Name)

	out, _, err = execute(t, "show", "1", "--db", env.db)
	require.NoError(t, err)
	assert.Contains(t, out, "Domain 1")
	assert.Contains(t, out, `name:  "beta"`)

	out, _, err = execute(t, "show", "--key", layout.DeriveKey(1).String(), "--db", env.db, "--format", "json")
	require.NoError(t, err)
	decodeData(t, out, &view)
	assert.Equal(t, uint64(1), view.ID)
	assert.Equal(t, "beta", view.Name)

	out, _, err = execute(t, "events", "--db", env.db, "--format", "json")
	require.NoError(t, err)
	var page eventsResult
	decodeData(t, out, &page)
	require.Len(t, page.Events, 3)
	assert.Equal(t, int64(3), page.Next)
	assert.Equal(t, []ir.EventKind{ir.KindDomainCreated, ir.KindDomainCreated, ir.KindDomainUpdated},
		[]ir.EventKind{page.Events[0].Kind, page.Events[1].Kind, page.Events[2].Kind})

	out, _, err = execute(t, "events", "--db", env.db, "--after", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "DomainUpdated")
	assert.NotContains(t, out, "DomainCreated")

	out, _, err = execute(t, "replay", "--db", env.db, "--format", "json")
	require.NoError(t, err)
	var replay struct {
		Events        int    `json:"events"`
		Created       int    `json:"created"`
		Updated       int    `json:"updated"`
		NextID        uint64 `json:"next_id"`
		Deterministic bool   `json:"deterministic"`
	}
	decodeData(t, out, &replay)
	assert.Equal(t, 3, replay.Events)
	assert.Equal(t, 2, replay.Created)
	assert.Equal(t, 1, replay.Updated)
	assert.Equal(t, uint64(2), replay.NextID)
	assert.True(t, replay.Deterministic)

	out, _, err = execute(t, "replay", "--db", env.db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ State matches the event log")
}

func TestEventsLogToStderr(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := execute(t, "init", "--db", env.db)
	require.NoError(t, err)

	out, stderr, err := execute(t, "create", "--db", env.db, "--key", env.key, "--name", "alpha", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "msg=event")
	assert.Contains(t, stderr, "kind=DomainCreated")

	var view recordView
	decodeData(t, out, &view)
}

func TestRejections(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := execute(t, "create", "--db", env.db, "--key", env.key, "--name", "alpha", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "NOT_INITIALIZED", decodeError(t, out))

	_, _, err = execute(t, "init", "--db", env.db)
	require.NoError(t, err)

	out, _, err = execute(t, "init", "--db", env.db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "ALREADY_INITIALIZED", decodeError(t, out))

	out, _, err = execute(t, "update", "5", "--type", "1", "--db", env.db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "RECORD_NOT_FOUND", decodeError(t, out))

	out, _, err = execute(t, "show", "5", "--db", env.db)
	require.Error(t, err)
	assert.Contains(t, out, "Error [RECORD_NOT_FOUND]")

	// Rejections leave nothing in the log.
	out, _, err = execute(t, "events", "--db", env.db)
	require.NoError(t, err)
	assert.Equal(t, "No events.\n", out)
}

func TestCommandErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"no database", []string{"init"}, "no database configured"},
		{"bad id", []string{"show", "abc", "--db", env.db}, "invalid id"},
		{"bad key", []string{"show", "--key", "05", "--db", env.db}, "invalid key"},
		{"id and key", []string{"show", "0", "--key", "0000000000000000", "--db", env.db}, "not both"},
		{"no target", []string{"show", "--db", env.db}, "pass <id> or --key"},
		{"negative after", []string{"events", "--after", "-1", "--db", env.db}, "--after"},
		{"missing key file", []string{"create", "--db", env.db, "--key", filepath.Join(t.TempDir(), "nope"), "--name", "x"}, "failed to read key"},
		{"missing config", []string{"init", "--db", env.db, "--config", filepath.Join(t.TempDir(), "missing.yaml")}, "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestConfigFileSetsDatabase(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "from-config.db")
	cfgPath := filepath.Join(dir, "domainreg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("db: "+db+"\nmax_name_len: 3\n"), 0o644))
	key := filepath.Join(dir, "owner.key")
	_, _, err := execute(t, "keygen", "--out", key)
	require.NoError(t, err)

	_, _, err = execute(t, "init", "--config", cfgPath)
	require.NoError(t, err)
	_, err = os.Stat(db)
	require.NoError(t, err, "init should create the configured database")

	out, _, err := execute(t, "create", "--config", cfgPath, "--key", key, "--name", "toolong", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, "INVALID_NAME", decodeError(t, out))
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	env := newTestEnv(t)
	before, err := os.ReadFile(env.key)
	require.NoError(t, err)

	_, _, err = execute(t, "keygen", "--out", env.key)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	after, err := os.ReadFile(env.key)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	out, _, err := execute(t, "keygen", "--out", env.key, "--force", "--format", "json")
	require.NoError(t, err)
	var res keygenResult
	decodeData(t, out, &res)

	priv, err := readKeyFile(env.key)
	require.NoError(t, err)
	assert.Equal(t, registry.PubkeyOf(priv), res.Owner)

	info, err := os.Stat(env.key)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestReplayDetectsTampering(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := execute(t, "init", "--db", env.db)
	require.NoError(t, err)
	_, _, err = execute(t, "create", "--db", env.db, "--key", env.key, "--name", "alpha", "--type", "1")
	require.NoError(t, err)

	st, err := store.Open(env.db)
	require.NoError(t, err)
	err = st.Update(t.Context(), func(tx store.Tx) error {
		rec, ok, err := tx.Record(layout.DeriveKey(0))
		if err != nil {
			return err
		}
		require.True(t, ok)
		rec.DomType = 200
		return tx.PutRecord(rec)
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(t, "replay", "--db", env.db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "E_REPLAY_MISMATCH", decodeError(t, out))

	out, _, err = execute(t, "replay", "--db", env.db)
	require.Error(t, err)
	assert.Contains(t, out, "mismatch")
}

func TestEnvelopeRoundTripFromCLI(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := execute(t, "init", "--db", env.db)
	require.NoError(t, err)
	_, _, err = execute(t, "create", "--db", env.db, "--key", env.key, "--name", "alpha", "--type", "4")
	require.NoError(t, err)

	out, _, err := execute(t, "events", "--db", env.db, "--format", "json")
	require.NoError(t, err)
	var page struct {
		Events []events.Envelope `json:"events"`
	}
	decodeData(t, out, &page)
	require.Len(t, page.Events, 1)

	ev, err := page.Events[0].Event()
	require.NoError(t, err)
	assert.Equal(t, page.Events[0].ID, ir.MustEventID(ev.Seq, ev.Payload))
}
