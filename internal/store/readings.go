package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/i474232898/weather-prediction/internal/weather"
)

// AppendReading inserts r. A reading with the same timestamp and location
// already present is left untouched and reported as inserted=false.
func (s *SQLiteStore) AppendReading(ctx context.Context, r weather.Reading) (bool, error) {
	rec := newReadingRecord(r)

	var inserted bool
	err := s.write(ctx, "append_reading", func(db *gorm.DB) error {
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected > 0
		return nil
	})
	return inserted, err
}

// LatestReading returns the newest reading for loc, or weather.ErrNoData.
func (s *SQLiteStore) LatestReading(ctx context.Context, loc weather.Location) (weather.Reading, error) {
	readings, err := s.RecentReadings(ctx, loc, 1)
	if err != nil {
		return weather.Reading{}, err
	}
	if len(readings) == 0 {
		return weather.Reading{}, weather.ErrNoData
	}
	return readings[0], nil
}

// RecentReadings returns up to limit readings for loc, newest first.
func (s *SQLiteStore) RecentReadings(ctx context.Context, loc weather.Location, limit int) ([]weather.Reading, error) {
	loc = loc.Normalized()

	var recs []readingRecord
	err := s.read(ctx, "recent_readings", func(db *gorm.DB) error {
		return db.
			Where("latitude = ? AND longitude = ?", loc.Latitude, loc.Longitude).
			Order("timestamp DESC").
			Limit(limit).
			Find(&recs).Error
	})
	if err != nil {
		return nil, err
	}
	return toReadings(recs)
}

// QueryReadings returns readings for loc with from <= timestamp < to,
// oldest first.
func (s *SQLiteStore) QueryReadings(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.Reading, error) {
	loc = loc.Normalized()

	var recs []readingRecord
	err := s.read(ctx, "query_readings", func(db *gorm.DB) error {
		return db.
			Where("latitude = ? AND longitude = ?", loc.Latitude, loc.Longitude).
			Where("timestamp >= ? AND timestamp < ?", weather.FormatTimestamp(from), weather.FormatTimestamp(to)).
			Order("timestamp ASC").
			Find(&recs).Error
	})
	if err != nil {
		return nil, err
	}
	return toReadings(recs)
}

// CountReadings returns the number of stored readings for loc.
func (s *SQLiteStore) CountReadings(ctx context.Context, loc weather.Location) (int64, error) {
	loc = loc.Normalized()

	var n int64
	err := s.read(ctx, "count_readings", func(db *gorm.DB) error {
		return db.Model(&readingRecord{}).
			Where("latitude = ? AND longitude = ?", loc.Latitude, loc.Longitude).
			Count(&n).Error
	})
	return n, err
}

func toReadings(recs []readingRecord) ([]weather.Reading, error) {
	out := make([]weather.Reading, 0, len(recs))
	for _, rec := range recs {
		r, err := rec.toReading()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
