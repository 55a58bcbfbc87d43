package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
)

// Update runs fn inside a BEGIN IMMEDIATE transaction.
// The transaction commits only if fn returns nil and ctx is still live.
func (s *Store) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(Reader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	return fn(&sqlTx{ctx: ctx, tx: tx})
}

// Events returns events with seq > afterSeq in seq order.
func (s *Store) Events(ctx context.Context, afterSeq int64, limit int) ([]ir.Event, error) {
	query := `
		SELECT seq, id, flow_token, kind, domain_id, payload, data
		FROM events
		WHERE seq > ?
		ORDER BY seq ASC`
	args := []any{afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []ir.Event
	for rows.Next() {
		var r eventRow
		var domainID int64
		if err := rows.Scan(&r.Seq, &r.ID, &r.FlowToken, &r.Kind, &domainID, &r.Payload, &r.Data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.DomainID = uint64(domainID)
		ev, err := r.toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqlTx) account(address []byte) ([]byte, bool, error) {
	var data []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT data FROM accounts WHERE address = ?`, address).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read account %x: %w", address, err)
	}
	return data, true, nil
}

func (t *sqlTx) Counter() (ir.Counter, bool, error) {
	data, ok, err := t.account(counterAddress)
	if err != nil || !ok {
		return ir.Counter{}, false, err
	}
	c, err := layout.DecodeCounter(data)
	if err != nil {
		return ir.Counter{}, false, err
	}
	return c, true, nil
}

func (t *sqlTx) Record(key layout.Key) (ir.Record, bool, error) {
	data, ok, err := t.account(key[:])
	if err != nil || !ok {
		return ir.Record{}, false, err
	}
	rec, err := layout.DecodeRecord(key, data)
	if err != nil {
		return ir.Record{}, false, err
	}
	return rec, true, nil
}

func (t *sqlTx) LastSeq() (int64, error) {
	var seq int64
	if err := t.tx.QueryRowContext(t.ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}

func (t *sqlTx) PutCounter(c ir.Counter) error {
	data := layout.EncodeCounter(c)
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO accounts (address, kind, data, size) VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET data = excluded.data, size = excluded.size`,
		counterAddress, kindCounter, data, len(data))
	if err != nil {
		return fmt.Errorf("write counter: %w", err)
	}
	return nil
}

func (t *sqlTx) InsertRecord(rec ir.Record) error {
	data, err := layout.EncodeRecord(rec)
	if err != nil {
		return err
	}
	key := layout.DeriveKey(rec.ID)

	// ON CONFLICT DO NOTHING turns a collision into zero affected rows
	// instead of a driver-specific constraint error.
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO accounts (address, kind, data, size) VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING`,
		key[:], kindRecord, data, len(data))
	if err != nil {
		return fmt.Errorf("insert record %d: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert record %d: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("insert record %d at %s: %w", rec.ID, key, ErrKeyExists)
	}
	return nil
}

func (t *sqlTx) PutRecord(rec ir.Record) error {
	data, err := layout.EncodeRecord(rec)
	if err != nil {
		return err
	}
	key := layout.DeriveKey(rec.ID)

	old, ok, err := t.account(key[:])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("write record %d at %s: %w", rec.ID, key, ErrKeyNotFound)
	}
	if err := checkRewrite(rec.ID, old, data, len(rec.Name)); err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(t.ctx, `
		UPDATE accounts SET data = ? WHERE address = ? AND kind = ?`,
		data, key[:], kindRecord); err != nil {
		return fmt.Errorf("write record %d: %w", rec.ID, err)
	}
	return nil
}

func (t *sqlTx) AppendEvent(ev ir.Event) error {
	last, err := t.LastSeq()
	if err != nil {
		return err
	}
	if ev.Seq != last+1 {
		return fmt.Errorf("append seq %d after %d: %w", ev.Seq, last, ErrSeqGap)
	}
	row, err := toEventRow(ev)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO events (seq, id, flow_token, kind, domain_id, payload, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.Seq, row.ID, row.FlowToken, row.Kind, int64(row.DomainID), row.Payload, row.Data)
	if err != nil {
		return fmt.Errorf("append event %d: %w", ev.Seq, err)
	}
	return nil
}
