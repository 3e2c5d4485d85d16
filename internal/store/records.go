package store

import (
	"fmt"

	"github.com/i474232898/weather-prediction/internal/weather"
)

type readingRecord struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Timestamp   string  `gorm:"column:timestamp"`
	Temperature float64 `gorm:"column:temperature"`
	Latitude    float64 `gorm:"column:latitude"`
	Longitude   float64 `gorm:"column:longitude"`
}

// TableName specifies the table name for readingRecord.
func (readingRecord) TableName() string {
	return "readings"
}

func newReadingRecord(r weather.Reading) readingRecord {
	loc := r.Location.Normalized()
	return readingRecord{
		Timestamp:   weather.FormatTimestamp(r.Timestamp),
		Temperature: r.Temperature,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
	}
}

func (rec readingRecord) toReading() (weather.Reading, error) {
	ts, err := weather.ParseTimestamp(rec.Timestamp)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("reading %d: bad timestamp %q: %w", rec.ID, rec.Timestamp, err)
	}
	return weather.Reading{
		Location:    weather.NewLocation(rec.Latitude, rec.Longitude),
		Timestamp:   ts,
		Temperature: rec.Temperature,
	}, nil
}

type predictionRecord struct {
	ID             int64   `gorm:"column:id;primaryKey;autoIncrement"`
	PredictionDate string  `gorm:"column:prediction_date"`
	TargetDate     string  `gorm:"column:target_date"`
	Hour           int     `gorm:"column:hour"`
	Temperature    float64 `gorm:"column:temperature"`
	Latitude       float64 `gorm:"column:latitude"`
	Longitude      float64 `gorm:"column:longitude"`
}

// TableName specifies the table name for predictionRecord.
func (predictionRecord) TableName() string {
	return "predictions"
}

func newPredictionRecord(loc weather.Location, p weather.Prediction) predictionRecord {
	return predictionRecord{
		PredictionDate: weather.FormatTimestamp(p.PredictionDate),
		TargetDate:     weather.FormatTimestamp(p.TargetDate),
		Hour:           p.Hour,
		Temperature:    p.Temperature,
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
	}
}

func (rec predictionRecord) toPrediction() (weather.Prediction, error) {
	generated, err := weather.ParseTimestamp(rec.PredictionDate)
	if err != nil {
		return weather.Prediction{}, fmt.Errorf("prediction %d: bad prediction_date %q: %w", rec.ID, rec.PredictionDate, err)
	}
	target, err := weather.ParseTimestamp(rec.TargetDate)
	if err != nil {
		return weather.Prediction{}, fmt.Errorf("prediction %d: bad target_date %q: %w", rec.ID, rec.TargetDate, err)
	}
	return weather.Prediction{
		Location:       weather.NewLocation(rec.Latitude, rec.Longitude),
		PredictionDate: generated,
		TargetDate:     target,
		Hour:           rec.Hour,
		Temperature:    rec.Temperature,
	}, nil
}
