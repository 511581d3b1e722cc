package repository

import (
	"context"
	"fmt"

	"github.com/hopline/hopline/internal/model"
)

// InsertClickEvent persists an enriched click event. Replays of the same
// event ID are silently dropped, which keeps delivery at-least-once
// without double counting rows.
func (r *Repository) InsertClickEvent(ctx context.Context, e *model.ClickEvent) error {
	query := `
		INSERT INTO click_events (
			event_id, mapping_id, clicked_at, client_ip, user_agent, referer,
			browser_name, browser_version, os_name, os_version, device_type,
			country_code, country_name, city, region, timezone
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (event_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		e.EventID,
		e.MappingID,
		e.ClickedAt,
		e.ClientIP,
		e.UserAgent,
		e.Referer,
		e.BrowserName,
		e.BrowserVersion,
		e.OSName,
		e.OSVersion,
		string(e.DeviceType),
		e.CountryCode,
		e.CountryName,
		e.City,
		e.Region,
		e.Timezone,
	)
	if err != nil {
		return fmt.Errorf("failed to insert click event: %w", err)
	}

	return nil
}

// CountClickEvents returns the number of recorded events for a mapping.
func (r *Repository) CountClickEvents(ctx context.Context, mappingID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM click_events WHERE mapping_id = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, mappingID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count click events: %w", err)
	}

	return count, nil
}

// ClicksByCountry groups a mapping's clicks by country name.
func (r *Repository) ClicksByCountry(ctx context.Context, mappingID int64) ([]model.BucketCount, error) {
	return r.groupClicks(ctx, mappingID, "country_name")
}

// ClicksByDevice groups a mapping's clicks by device type.
func (r *Repository) ClicksByDevice(ctx context.Context, mappingID int64) ([]model.BucketCount, error) {
	return r.groupClicks(ctx, mappingID, "device_type")
}

// ClicksByBrowser groups a mapping's clicks by browser name.
func (r *Repository) ClicksByBrowser(ctx context.Context, mappingID int64) ([]model.BucketCount, error) {
	return r.groupClicks(ctx, mappingID, "browser_name")
}

// ClicksByOS groups a mapping's clicks by operating system.
func (r *Repository) ClicksByOS(ctx context.Context, mappingID int64) ([]model.BucketCount, error) {
	return r.groupClicks(ctx, mappingID, "os_name")
}

// ClicksByReferer groups a mapping's clicks by referer.
func (r *Repository) ClicksByReferer(ctx context.Context, mappingID int64) ([]model.BucketCount, error) {
	return r.groupClicks(ctx, mappingID, "referer")
}

// ClicksByDay returns daily click totals for a mapping, oldest first.
func (r *Repository) ClicksByDay(ctx context.Context, mappingID int64) ([]model.DailyCount, error) {
	query := `
		SELECT TO_CHAR(clicked_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		FROM click_events
		WHERE mapping_id = $1
		GROUP BY day
		ORDER BY day
	`

	rows, err := r.pool.Query(ctx, query, mappingID)
	if err != nil {
		return nil, fmt.Errorf("failed to group clicks by day: %w", err)
	}
	defer rows.Close()

	var counts []model.DailyCount
	for rows.Next() {
		var dc model.DailyCount
		if err := rows.Scan(&dc.Date, &dc.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		counts = append(counts, dc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily counts: %w", err)
	}

	return counts, nil
}

// groupClicks is the shared GROUP BY implementation for the breakdown
// queries. The column name always comes from the fixed callers above,
// never from user input.
func (r *Repository) groupClicks(ctx context.Context, mappingID int64, column string) ([]model.BucketCount, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(NULLIF(%s, ''), 'Unknown') AS label, COUNT(*) AS clicks
		FROM click_events
		WHERE mapping_id = $1
		GROUP BY label
		ORDER BY clicks DESC
	`, column)

	rows, err := r.pool.Query(ctx, query, mappingID)
	if err != nil {
		return nil, fmt.Errorf("failed to group clicks by %s: %w", column, err)
	}
	defer rows.Close()

	var counts []model.BucketCount
	for rows.Next() {
		var bc model.BucketCount
		if err := rows.Scan(&bc.Label, &bc.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan bucket count: %w", err)
		}
		counts = append(counts, bc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bucket counts: %w", err)
	}

	return counts, nil
}
