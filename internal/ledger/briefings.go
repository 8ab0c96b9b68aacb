// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// SaveBriefing stores b under its date, replacing an earlier briefing for
// the same day.
func (l *Ledger) SaveBriefing(ctx context.Context, b types.Briefing) error {
	content, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling briefing: %w", err)
	}
	created := b.GeneratedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO briefings (date, content, paper_count, platforms, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			content=excluded.content, paper_count=excluded.paper_count,
			platforms=excluded.platforms, created_at=excluded.created_at`,
		b.DateKey(), string(content), len(b.Entries), strings.Join(b.Platforms, ","),
		created.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving briefing %s: %w", b.DateKey(), err)
	}
	return nil
}

// LoadBriefing returns the briefing stored for date (YYYY-MM-DD).
func (l *Ledger) LoadBriefing(ctx context.Context, date string) (types.Briefing, error) {
	var content string
	err := l.db.QueryRowContext(ctx, `SELECT content FROM briefings WHERE date = ?`, date).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Briefing{}, fmt.Errorf("briefing %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return types.Briefing{}, fmt.Errorf("loading briefing %s: %w", date, err)
	}

	var b types.Briefing
	if err := json.Unmarshal([]byte(content), &b); err != nil {
		return types.Briefing{}, fmt.Errorf("decoding briefing %s: %w", date, err)
	}
	return b, nil
}

// LatestBriefingDate returns the most recent briefing date, or "" when
// none are stored.
func (l *Ledger) LatestBriefingDate(ctx context.Context) (string, error) {
	var date sql.NullString
	if err := l.db.QueryRowContext(ctx, `SELECT max(date) FROM briefings`).Scan(&date); err != nil {
		return "", fmt.Errorf("finding latest briefing: %w", err)
	}
	return date.String, nil
}

// Stats summarizes the ledger contents.
func (l *Ledger) Stats(ctx context.Context) (types.LedgerStats, error) {
	stats := types.LedgerStats{
		ByPlatform: map[string]int{},
		ByStage:    map[string]int{},
	}

	var relevant sql.NullInt64
	var oldest, newest sql.NullString
	err := l.db.QueryRowContext(ctx,
		`SELECT count(*), sum(relevant), min(processed_at), max(processed_at) FROM processed_papers`,
	).Scan(&stats.TotalPapers, &relevant, &oldest, &newest)
	if err != nil {
		return stats, fmt.Errorf("querying ledger totals: %w", err)
	}
	stats.RelevantPapers = int(relevant.Int64)
	if oldest.Valid {
		stats.Oldest, _ = time.Parse(timeLayout, oldest.String)
	}
	if newest.Valid {
		stats.Newest, _ = time.Parse(timeLayout, newest.String)
	}

	if err := l.groupCount(ctx, "platform", stats.ByPlatform); err != nil {
		return stats, err
	}
	if err := l.groupCount(ctx, "stage", stats.ByStage); err != nil {
		return stats, err
	}

	if err := l.db.QueryRowContext(ctx, `SELECT count(*) FROM briefings`).Scan(&stats.Briefings); err != nil {
		return stats, fmt.Errorf("counting briefings: %w", err)
	}
	return stats, nil
}

// groupCount fills out with row counts grouped by column, which must be
// one of the fixed column names above.
func (l *Ledger) groupCount(ctx context.Context, column string, out map[string]int) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT coalesce(`+column+`, ''), count(*) FROM processed_papers GROUP BY 1`)
	if err != nil {
		return fmt.Errorf("grouping by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scanning %s counts: %w", column, err)
		}
		if key == "" {
			key = "unknown"
		}
		out[key] = n
	}
	return rows.Err()
}
