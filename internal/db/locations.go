package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Vishal-43/smart-attendece-system/internal/model"
)

const getGeoFence = `
SELECT id, latitude, longitude, radius
FROM locations
WHERE id = $1
`

// GetGeoFence loads a location's verification envelope from the durable
// store. Called by the validator only on a cache miss.
func (q *Queries) GetGeoFence(ctx context.Context, locationID string) (model.GeoFence, error) {
	var fence model.GeoFence
	row := q.db.QueryRow(ctx, getGeoFence, locationID)
	if err := row.Scan(&fence.LocationID, &fence.Latitude, &fence.Longitude, &fence.Radius); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GeoFence{}, model.ErrLocationNotFound
		}
		return model.GeoFence{}, err
	}
	return fence, nil
}
