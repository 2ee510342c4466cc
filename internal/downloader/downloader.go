package downloader

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bollinger-optimizer-go/internal/models"
	"bollinger-optimizer-go/internal/persistence"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"
)

// 币安单次请求最多1000条
const maxKlinesPerRequest = 1000

// KlineSource fetches one page of klines. It is satisfied by the Binance REST client adapter.
type KlineSource interface {
	Klines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*binance.Kline, error)
}

type binanceSource struct {
	client *binance.Client
}

func (s binanceSource) Klines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*binance.Kline, error) {
	return s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		StartTime(startMs).
		EndTime(endMs).
		Limit(limit).
		Do(ctx)
}

// KlineDownloader 用于从币安下载K线数据
type KlineDownloader struct {
	source KlineSource
	cache  persistence.CandleCache
	pause  time.Duration
	logger *zap.Logger
}

// Option configures a KlineDownloader.
type Option func(*KlineDownloader)

// WithCache stores and reuses downloaded series.
func WithCache(cache persistence.CandleCache) Option {
	return func(d *KlineDownloader) { d.cache = cache }
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *KlineDownloader) { d.logger = logger }
}

// WithSource replaces the Binance client, mainly for tests.
func WithSource(source KlineSource) Option {
	return func(d *KlineDownloader) { d.source = source }
}

// WithPause sets the delay between page requests.
func WithPause(pause time.Duration) Option {
	return func(d *KlineDownloader) { d.pause = pause }
}

// NewKlineDownloader 创建一个新的下载器实例
func NewKlineDownloader(opts ...Option) *KlineDownloader {
	d := &KlineDownloader{
		source: binanceSource{client: binance.NewClient("", "")}, // 公共接口不需要API Key
		pause:  200 * time.Millisecond,                           // 避免过于频繁的请求
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download 下载 [start, end) 范围内的K线, 优先使用缓存
func (d *KlineDownloader) Download(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.Candle, error) {
	log := d.logger.With(zap.String("symbol", symbol), zap.String("interval", interval))
	key := persistence.CandleKey(symbol, interval, start.UTC().Format(time.DateOnly), end.UTC().Format(time.DateOnly))

	if d.cache != nil {
		cached, err := d.cache.LoadCandles(key)
		if err != nil {
			log.Warn("candle cache read failed", zap.Error(err))
		} else if cached != nil {
			log.Info("loaded candles from cache", zap.Int("candles", len(cached)))
			return cached, nil
		}
	}

	log.Info("downloading klines", zap.Time("start", start), zap.Time("end", end))

	endMs := end.UnixMilli() - 1
	var candles []models.Candle
	for t := start.UnixMilli(); t <= endMs; {
		klines, err := d.source.Klines(ctx, symbol, interval, t, endMs, maxKlinesPerRequest)
		if err != nil {
			return nil, fmt.Errorf("download klines %s %s: %w", symbol, interval, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			c, err := klineToCandle(k)
			if err != nil {
				return nil, fmt.Errorf("parse kline at %d: %w", k.OpenTime, err)
			}
			candles = append(candles, c)
		}

		// 更新下一次请求的开始时间
		next := klines[len(klines)-1].CloseTime + 1
		if next <= t {
			break
		}
		t = next
		log.Debug("downloaded page", zap.Time("until", time.UnixMilli(t).UTC()), zap.Int("candles", len(candles)))

		if len(klines) < maxKlinesPerRequest {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.pause):
		}
	}

	log.Info("download finished", zap.Int("candles", len(candles)))
	if d.cache != nil && len(candles) > 0 {
		if err := d.cache.SaveCandles(key, candles); err != nil {
			log.Warn("candle cache write failed", zap.Error(err))
		}
	}
	return candles, nil
}

func klineToCandle(k *binance.Kline) (models.Candle, error) {
	var (
		c   = models.Candle{Timestamp: k.OpenTime}
		err error
	)
	fields := []struct {
		dst *float64
		src string
	}{
		{&c.Open, k.Open},
		{&c.High, k.High},
		{&c.Low, k.Low},
		{&c.Close, k.Close},
		{&c.Volume, k.Volume},
	}
	for _, f := range fields {
		if *f.dst, err = strconv.ParseFloat(f.src, 64); err != nil {
			return models.Candle{}, err
		}
	}
	return c, nil
}
