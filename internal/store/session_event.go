package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

func (r *eventRepo) AppendSessionEvent(ctx context.Context, data SessionEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	var sectionID any
	if data.SectionID != "" {
		sectionID = data.SectionID
	}

	q, args := entsql.Dialect(r.dialect).Insert(SessionEventsTable.Name).
		Columns("sequence", "timestamp", "session_id", "action", "section_id", "correct", "total", "percentage").
		Values(seqNum, time.Now().UTC(), data.SessionID, data.Action, sectionID, data.Correct, data.Total, data.Percentage).
		Query()
	if err := exec(ctx, r.drv, q, args); err != nil {
		return fmt.Errorf("save session event: %w", err)
	}
	return nil
}

func (r *eventRepo) QuerySessionEvents(ctx context.Context, opts QueryOpts) ([]SessionEventRecord, error) {
	b := entsql.Dialect(r.dialect)
	s := b.Select("sequence", "timestamp", "session_id", "action", "section_id", "correct", "total", "percentage").
		From(b.Table(SessionEventsTable.Name))
	if opts.SessionID != "" {
		s.Where(entsql.EQ("session_id", opts.SessionID))
	}
	q, args := applyOpts(s, opts).Query()

	var records []SessionEventRecord
	err := query(ctx, r.drv, q, args, func(rows *entsql.Rows) error {
		var (
			rec       SessionEventRecord
			sectionID sql.NullString
		)
		if err := rows.Scan(&rec.Sequence, &rec.Timestamp, &rec.SessionID, &rec.Action, &sectionID,
			&rec.Correct, &rec.Total, &rec.Percentage); err != nil {
			return err
		}
		rec.SectionID = sectionID.String
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	return records, nil
}
