package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/weather"
)

// ReplacePredictions atomically replaces the predictions of loc whose
// target_date falls in [from, to) with preds. Rows that still collide with
// the unique key are skipped; the returned slice holds only rows written.
func (s *SQLiteStore) ReplacePredictions(ctx context.Context, loc weather.Location, from, to time.Time, preds []weather.Prediction) ([]weather.Prediction, error) {
	loc = loc.Normalized()

	var inserted []weather.Prediction
	err := s.write(ctx, "replace_predictions", func(db *gorm.DB) error {
		// A retried attempt starts from an empty result.
		inserted = inserted[:0]

		return db.Transaction(func(tx *gorm.DB) error {
			err := tx.
				Where("latitude = ? AND longitude = ?", loc.Latitude, loc.Longitude).
				Where("target_date >= ? AND target_date < ?", weather.FormatTimestamp(from), weather.FormatTimestamp(to)).
				Delete(&predictionRecord{}).Error
			if err != nil {
				return err
			}

			for _, p := range preds {
				rec := newPredictionRecord(loc, p)
				res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					logger.Warnf("store: prediction %s hour %d for %s already present, skipped", rec.TargetDate, rec.Hour, loc.Key())
					continue
				}
				p.Location = loc
				inserted = append(inserted, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.opts.Metrics.PredictionsStored(len(inserted))
	return inserted, nil
}

// ClearPredictions deletes every prediction stored for loc.
func (s *SQLiteStore) ClearPredictions(ctx context.Context, loc weather.Location) (int64, error) {
	loc = loc.Normalized()

	var n int64
	err := s.write(ctx, "clear_predictions", func(db *gorm.DB) error {
		res := db.
			Where("latitude = ? AND longitude = ?", loc.Latitude, loc.Longitude).
			Delete(&predictionRecord{})
		n = res.RowsAffected
		return res.Error
	})
	return n, err
}

// QueryPredictions returns predictions for loc with from <= target_date < to,
// ordered by target_date then hour.
func (s *SQLiteStore) QueryPredictions(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.Prediction, error) {
	loc = loc.Normalized()

	var recs []predictionRecord
	err := s.read(ctx, "query_predictions", func(db *gorm.DB) error {
		return db.
			Where("latitude = ? AND longitude = ?", loc.Latitude, loc.Longitude).
			Where("target_date >= ? AND target_date < ?", weather.FormatTimestamp(from), weather.FormatTimestamp(to)).
			Order("target_date ASC").
			Order("hour ASC").
			Find(&recs).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]weather.Prediction, 0, len(recs))
	for _, rec := range recs {
		p, err := rec.toPrediction()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
