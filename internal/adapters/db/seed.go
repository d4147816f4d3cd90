// internal/adapters/db/seed.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
)

// seedCollection inserts the seed rows of c and its seed_log marker in one
// transaction, so a collection is either fully seeded or untouched.
func (s *Store) seedCollection(ctx context.Context, c domain.Collection) error {
	records := s.seed.Records(c)

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		q := s.wrap(tx)

		seeded, err := isSeeded(ctx, q, c)
		if err != nil {
			return err
		}
		if seeded {
			s.logger.DebugContext(ctx, "collection already seeded",
				slog.String("collection", c.String()))
			return nil
		}

		for i, r := range records {
			if err := add(ctx, q, c, r); err != nil {
				return fmt.Errorf("seed row %d: %w", i, err)
			}
		}

		query, args, err := builder.Insert("seed_log").
			Columns("collection", "row_count", "seeded_at").
			Values(c.String(), len(records), encodeTime(s.now())).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build seed_log insert: %w", err)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to record seed of %s: %w", c, err)
		}

		s.logger.InfoContext(ctx, "collection seeded",
			slog.String("collection", c.String()),
			slog.Int("rows", len(records)))
		return nil
	})
}

func isSeeded(ctx context.Context, q queryer, c domain.Collection) (bool, error) {
	query, args, err := builder.Select("row_count").From("seed_log").Where(sq.Eq{"collection": c.String()}).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build seed_log select: %w", err)
	}

	var rows int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&rows); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read seed_log: %w", err)
	}
	return true, nil
}
