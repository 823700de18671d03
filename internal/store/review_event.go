package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

func (r *eventRepo) AppendReviewEvent(ctx context.Context, data ReviewEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	q, args := entsql.Dialect(r.dialect).Insert(ReviewEventsTable.Name).
		Columns("sequence", "timestamp", "question_id", "level", "next_review").
		Values(seqNum, time.Now().UTC(), data.QuestionID, data.Level, data.NextReview.UTC()).
		Query()
	if err := exec(ctx, r.drv, q, args); err != nil {
		return fmt.Errorf("save review event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryReviewEvents(ctx context.Context, opts QueryOpts) ([]ReviewEventRecord, error) {
	b := entsql.Dialect(r.dialect)
	s := b.Select("sequence", "timestamp", "question_id", "level", "next_review").
		From(b.Table(ReviewEventsTable.Name))
	q, args := applyOpts(s, opts).Query()

	var records []ReviewEventRecord
	err := query(ctx, r.drv, q, args, func(rows *entsql.Rows) error {
		var rec ReviewEventRecord
		if err := rows.Scan(&rec.Sequence, &rec.Timestamp, &rec.QuestionID, &rec.Level, &rec.NextReview); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query review events: %w", err)
	}
	return records, nil
}

func (r *eventRepo) ReviewCounts(ctx context.Context) (map[string]int, error) {
	b := entsql.Dialect(r.dialect)
	q, args := b.Select("question_id", entsql.Count("*")).
		From(b.Table(ReviewEventsTable.Name)).
		GroupBy("question_id").
		Query()

	counts := make(map[string]int)
	err := query(ctx, r.drv, q, args, func(rows *entsql.Rows) error {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return err
		}
		counts[id] = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query review counts: %w", err)
	}
	return counts, nil
}
