package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"bollinger-optimizer-go/internal/models"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/jxskiss/base62"
)

const (
	runPrefix    = "run/"
	candlePrefix = "candles/"
)

// badgerRepository is the BadgerDB implementation of the Repository.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository creates and returns a new repository instance connected to a BadgerDB database.
func NewBadgerRepository(dbPath string) (Repository, error) {
	return openBadger(badger.DefaultOptions(dbPath))
}

// NewInMemoryRepository opens a BadgerDB that lives only in memory.
func NewInMemoryRepository() (Repository, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true))
}

func openBadger(opts badger.Options) (Repository, error) {
	// Badger 自身的日志会干扰程序输出, 错误仍通过返回值传递
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerRepository{db: db}, nil
}

// NewRunID returns a short, URL-safe unique run identifier.
func NewRunID() string {
	id := uuid.New()
	return base62.EncodeToString(id[:])
}

func runKey(id string) []byte { return []byte(runPrefix + id) }

// CandleKey builds the cache key of a downloaded series.
func CandleKey(symbol, interval, start, end string) string {
	return fmt.Sprintf("%s_%s_%s_%s", symbol, interval, start, end)
}

// SaveRun marshals the run into JSON and stores it under its ID.
func (r *badgerRepository) SaveRun(run *models.OptimizationRun) error {
	if run == nil || run.ID == "" {
		return errors.New("run must have an ID")
	}
	return r.put(runKey(run.ID), run)
}

// LoadRun loads a run from storage.
// If the key is not found, it returns (nil, nil) to indicate no run is present.
func (r *badgerRepository) LoadRun(id string) (*models.OptimizationRun, error) {
	var run models.OptimizationRun
	found, err := r.get(runKey(id), &run)
	if err != nil || !found {
		return nil, err
	}
	return &run, nil
}

func (r *badgerRepository) ListRuns() ([]*models.OptimizationRun, error) {
	var runs []*models.OptimizationRun
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var run models.OptimizationRun
				if err := json.Unmarshal(val, &run); err != nil {
					return err
				}
				runs = append(runs, &run)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs, nil
}

func (r *badgerRepository) SaveCandles(key string, candles []models.Candle) error {
	return r.put([]byte(candlePrefix+key), candles)
}

// LoadCandles returns (nil, nil) when the series is not cached.
func (r *badgerRepository) LoadCandles(key string) ([]models.Candle, error) {
	var candles []models.Candle
	found, err := r.get([]byte(candlePrefix+key), &candles)
	if err != nil || !found {
		return nil, err
	}
	return candles, nil
}

func (r *badgerRepository) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (r *badgerRepository) get(key []byte, v any) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return fmt.Errorf("value for %q is empty in database", key)
			}
			return json.Unmarshal(val, v)
		})
	})

	// 在事务之外判断 "key not found", 这是 "没有数据" 的正常情况
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
