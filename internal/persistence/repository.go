package persistence

import "bollinger-optimizer-go/internal/models"

// RunRepository stores optimization run checkpoints.
// It abstracts the underlying storage mechanism (e.g., BadgerDB, in-memory)
// from the rest of the application.
type RunRepository interface {
	// SaveRun atomically replaces the stored record of run.ID.
	SaveRun(run *models.OptimizationRun) error

	// LoadRun loads a run by ID.
	// If no run is found, it should return (nil, nil).
	LoadRun(id string) (*models.OptimizationRun, error)

	// ListRuns returns every stored run, most recently started first.
	ListRuns() ([]*models.OptimizationRun, error)
}

// CandleCache stores downloaded candle series so repeated runs skip the exchange.
type CandleCache interface {
	SaveCandles(key string, candles []models.Candle) error

	// LoadCandles returns (nil, nil) on a cache miss.
	LoadCandles(key string) ([]models.Candle, error)
}

// Repository is the full storage surface of the optimizer.
type Repository interface {
	RunRepository
	CandleCache

	// Close gracefully closes the connection to the database.
	Close() error
}
