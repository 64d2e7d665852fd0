package game

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// RecentEvents lists world events newer than afterID, oldest first. A
// locationID of zero returns events everywhere.
func (s *Service) RecentEvents(ctx context.Context, afterID, locationID int64, limit int) ([]WorldEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, kind, COALESCE(location_id, 0), payload, created_at
		FROM (
			SELECT * FROM realm.world_events
			WHERE id > $1 AND ($2 = 0 OR location_id IS NULL OR location_id = $2)
			ORDER BY id DESC
			LIMIT $3
		) recent
		ORDER BY id
	`, afterID, locationID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (WorldEvent, error) {
		var ev WorldEvent
		err := row.Scan(&ev.ID, &ev.Kind, &ev.LocationID, &ev.Payload, &ev.CreatedAt)
		return ev, err
	})
}
