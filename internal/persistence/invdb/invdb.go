// Package invdb is a SQLite-backed inventory provider.
package invdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"voxelbarter.ai/internal/sim/inventory"
)

// DB serves the same contract as inventory.Store. Each mutation runs in its
// own transaction.
type DB struct {
	conn     *sqlx.DB
	maxStack int
}

type slotRow struct {
	Idx   int    `db:"idx"`
	Item  string `db:"item"`
	Count int    `db:"count"`
}

type agentRow struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Slots int    `db:"slots"`
}

func Open(path string, maxStack int) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if maxStack <= 0 {
		maxStack = 1
	}
	db := &DB{conn: conn, maxStack: maxStack}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) migrate() error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.conn.Exec(p); err != nil {
			return err
		}
	}
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slots INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS slots (
		agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		item TEXT NOT NULL DEFAULT '',
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (agent_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_slots_item ON slots(agent_id, item);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Seed creates agentID with the given starter items, filling slots in sorted
// item order. An existing agent is replaced.
func (db *DB) Seed(agentID, name string, slots int, items map[string]int) error {
	if agentID == "" || slots <= 0 {
		return fmt.Errorf("seed %q: need an id and at least one slot", agentID)
	}
	stacks := make([]inventory.Stack, slots)
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	next := 0
	for _, id := range ids {
		for n := items[id]; n > 0; {
			if next >= slots {
				return fmt.Errorf("seed %s: %w", agentID, inventory.ErrInventoryFull)
			}
			c := min(n, db.maxStack)
			stacks[next] = inventory.Stack{Item: id, Count: c}
			n -= c
			next++
		}
	}
	return db.Import([]inventory.AgentState{{ID: agentID, Name: name, Slots: stacks}})
}

// Import writes each agent's slots, replacing any existing rows for it.
func (db *DB) Import(states []inventory.AgentState) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, st := range states {
		if _, err := tx.Exec(`DELETE FROM agents WHERE id = ?`, st.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO agents (id, name, slots) VALUES (?, ?, ?)`, st.ID, st.Name, len(st.Slots)); err != nil {
			return fmt.Errorf("insert agent %s: %w", st.ID, err)
		}
		for i, sl := range st.Slots {
			if sl.Empty() {
				sl = inventory.Stack{}
			}
			if _, err := tx.Exec(`INSERT INTO slots (agent_id, idx, item, count) VALUES (?, ?, ?, ?)`, st.ID, i, sl.Item, sl.Count); err != nil {
				return fmt.Errorf("insert slot %s/%d: %w", st.ID, i, err)
			}
		}
	}
	return tx.Commit()
}

func (db *DB) Export() ([]inventory.AgentState, error) {
	var agents []agentRow
	if err := db.conn.Select(&agents, `SELECT id, name, slots FROM agents ORDER BY id`); err != nil {
		return nil, err
	}
	out := make([]inventory.AgentState, 0, len(agents))
	for _, a := range agents {
		var rows []slotRow
		if err := db.conn.Select(&rows, `SELECT idx, item, count FROM slots WHERE agent_id = ? ORDER BY idx`, a.ID); err != nil {
			return nil, err
		}
		st := inventory.AgentState{ID: a.ID, Name: a.Name, Slots: make([]inventory.Stack, a.Slots)}
		for _, r := range rows {
			if r.Idx >= 0 && r.Idx < a.Slots && r.Count > 0 {
				st.Slots[r.Idx] = inventory.Stack{Item: r.Item, Count: r.Count}
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (db *DB) Agents() ([]string, error) {
	var ids []string
	err := db.conn.Select(&ids, `SELECT id FROM agents ORDER BY id`)
	return ids, err
}

func (db *DB) SlotCount(agentID string) (int, error) {
	var n int
	err := db.conn.Get(&n, `SELECT slots FROM agents WHERE id = ?`, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", agentID, inventory.ErrUnknownAgent)
	}
	return n, err
}

func (db *DB) ItemAt(agentID string, slot int) (string, bool, error) {
	n, err := db.SlotCount(agentID)
	if err != nil {
		return "", false, err
	}
	if slot < 0 || slot >= n {
		return "", false, fmt.Errorf("%s slot %d: %w", agentID, slot, inventory.ErrBadSlot)
	}
	var r slotRow
	err = db.conn.Get(&r, `SELECT idx, item, count FROM slots WHERE agent_id = ? AND idx = ?`, agentID, slot)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if r.Count <= 0 || r.Item == "" {
		return "", false, nil
	}
	return r.Item, true, nil
}

func (db *DB) Counts(agentID string) (map[string]int, error) {
	if _, err := db.SlotCount(agentID); err != nil {
		return nil, err
	}
	var rows []struct {
		Item  string `db:"item"`
		Total int    `db:"total"`
	}
	if err := db.conn.Select(&rows, `SELECT item, SUM(count) AS total FROM slots WHERE agent_id = ? AND count > 0 GROUP BY item`, agentID); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Item] = r.Total
	}
	return out, nil
}

// RemoveOne takes one unit from the first slot holding exactly id.
func (db *DB) RemoveOne(agentID, id string) error {
	return db.inTx(agentID, func(tx *sqlx.Tx) error {
		var r slotRow
		err := tx.Get(&r, `SELECT idx, item, count FROM slots WHERE agent_id = ? AND item = ? AND count > 0 ORDER BY idx LIMIT 1`, agentID, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("remove %s from %s: %w", id, agentID, inventory.ErrNotFound)
		}
		if err != nil {
			return err
		}
		item, count := r.Item, r.Count-1
		if count == 0 {
			item = ""
		}
		return updateSlot(tx, agentID, r, item, count)
	})
}

// AddOne merges into the first non-full stack of id, else the first empty slot.
func (db *DB) AddOne(agentID, id string) error {
	if id == "" {
		return fmt.Errorf("add to %s: empty item id", agentID)
	}
	return db.inTx(agentID, func(tx *sqlx.Tx) error {
		var r slotRow
		err := tx.Get(&r, `SELECT idx, item, count FROM slots WHERE agent_id = ? AND item = ? AND count > 0 AND count < ? ORDER BY idx LIMIT 1`, agentID, id, db.maxStack)
		if err == nil {
			return updateSlot(tx, agentID, r, id, r.Count+1)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		err = tx.Get(&r, `SELECT idx, item, count FROM slots WHERE agent_id = ? AND count = 0 ORDER BY idx LIMIT 1`, agentID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("add %s to %s: %w", id, agentID, inventory.ErrInventoryFull)
		}
		if err != nil {
			return err
		}
		return updateSlot(tx, agentID, r, id, 1)
	})
}

func (db *DB) inTx(agentID string, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	err = tx.Get(&one, `SELECT 1 FROM agents WHERE id = ?`, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", agentID, inventory.ErrUnknownAgent)
	}
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// updateSlot writes the slot only if it still holds what was read.
func updateSlot(tx *sqlx.Tx, agentID string, was slotRow, item string, count int) error {
	res, err := tx.Exec(`UPDATE slots SET item = ?, count = ? WHERE agent_id = ? AND idx = ? AND item = ? AND count = ?`,
		item, count, agentID, was.Idx, was.Item, was.Count)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s slot %d: %w", agentID, was.Idx, inventory.ErrConflict)
	}
	return nil
}
