package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// snapshotRepo implements SnapshotRepo using the ent SQL builder.
type snapshotRepo struct {
	drv     *entsql.Driver
	dialect string
}

func (r *snapshotRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.dialect)
}

func (r *snapshotRepo) Save(ctx context.Context, snap *Snapshot) error {
	if snap.StorageKey == "" {
		return fmt.Errorf("save snapshot: empty storage key")
	}
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("marshal snapshot data: %w", err)
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	q, args := r.builder().Insert(SessionSnapshotsTable.Name).
		Columns("storage_key", "sequence", "timestamp", "data").
		Values(snap.StorageKey, snap.Sequence, ts.UTC(), string(data)).
		Query()
	if err := exec(ctx, r.drv, q, args); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Latest(ctx context.Context, key string) (*Snapshot, error) {
	b := r.builder()
	q, args := b.Select("id", "storage_key", "sequence", "timestamp", "data").
		From(b.Table(SessionSnapshotsTable.Name)).
		Where(entsql.EQ("storage_key", key)).
		OrderBy(entsql.Desc("id")).
		Limit(1).
		Query()

	var (
		snap  *Snapshot
		found bool
	)
	err := query(ctx, r.drv, q, args, func(rows *entsql.Rows) error {
		var (
			s   Snapshot
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.StorageKey, &s.Sequence, &s.Timestamp, &raw); err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &s.Data); err != nil {
			return fmt.Errorf("unmarshal snapshot data: %w", err)
		}
		snap, found = &s, true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	return snap, nil
}

func (r *snapshotRepo) Prune(ctx context.Context, key string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	b := r.builder()
	q, args := b.Select("id").
		From(b.Table(SessionSnapshotsTable.Name)).
		Where(entsql.EQ("storage_key", key)).
		OrderBy(entsql.Desc("id")).
		Offset(keep).
		Limit(1).
		Query()

	threshold := -1
	err := query(ctx, r.drv, q, args, func(rows *entsql.Rows) error {
		return rows.Scan(&threshold)
	})
	if err != nil {
		return 0, fmt.Errorf("query snapshots for prune: %w", err)
	}
	if threshold < 0 {
		return 0, nil // fewer than keep snapshots exist
	}

	q, args = r.builder().Delete(SessionSnapshotsTable.Name).
		Where(entsql.And(
			entsql.EQ("storage_key", key),
			entsql.LTE("id", threshold),
		)).
		Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return int(n), nil
}

func (r *snapshotRepo) Delete(ctx context.Context, key string) error {
	q, args := r.builder().Delete(SessionSnapshotsTable.Name).
		Where(entsql.EQ("storage_key", key)).
		Query()
	if err := exec(ctx, r.drv, q, args); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Keys(ctx context.Context) ([]string, error) {
	b := r.builder()
	q, args := b.Select("storage_key").
		Distinct().
		From(b.Table(SessionSnapshotsTable.Name)).
		OrderBy("storage_key").
		Query()

	var keys []string
	err := query(ctx, r.drv, q, args, func(rows *entsql.Rows) error {
		var k string
		if err := rows.Scan(&k); err != nil {
			return err
		}
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query snapshot keys: %w", err)
	}
	return keys, nil
}
