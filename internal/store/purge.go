package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/weather"
)

// Purge removes readings and predictions older than the policy allows,
// relative to now. A row is removed only when strictly older than its cutoff.
func (s *SQLiteStore) Purge(ctx context.Context, policy weather.RetentionPolicy, now time.Time) (weather.PurgeResult, error) {
	readingCutoff, predictionCutoff := policy.Cutoffs(now)

	var result weather.PurgeResult
	err := s.write(ctx, "purge", func(db *gorm.DB) error {
		result = weather.PurgeResult{}

		return db.Transaction(func(tx *gorm.DB) error {
			res := tx.Where("timestamp < ?", weather.FormatTimestamp(readingCutoff)).Delete(&readingRecord{})
			if res.Error != nil {
				return res.Error
			}
			result.Readings = res.RowsAffected

			res = tx.Where("prediction_date < ?", weather.FormatTimestamp(predictionCutoff)).Delete(&predictionRecord{})
			if res.Error != nil {
				return res.Error
			}
			result.Predictions = res.RowsAffected
			return nil
		})
	})
	if err != nil {
		return weather.PurgeResult{}, err
	}

	s.opts.Metrics.Purged("readings", result.Readings)
	s.opts.Metrics.Purged("predictions", result.Predictions)
	logger.Infof("store: purged %d readings before %s and %d predictions generated before %s",
		result.Readings, weather.FormatTimestamp(readingCutoff),
		result.Predictions, weather.FormatTimestamp(predictionCutoff))
	return result, nil
}
