package downloader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"bollinger-optimizer-go/internal/models"
)

// LoadCSV 读取本地K线CSV文件
func LoadCSV(path string) ([]models.Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV parses Binance kline exports: open_time, open, high, low, close, volume, ...
// A header row is skipped. Columns after volume are ignored.
func ReadCSV(r io.Reader) ([]models.Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取CSV失败: %w", err)
	}

	candles := make([]models.Candle, 0, len(records))
	for i, record := range records {
		if len(record) < 6 {
			return nil, fmt.Errorf("第 %d 行字段不足: %d", i+1, len(record))
		}
		ts, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			if i == 0 {
				continue // 表头
			}
			return nil, fmt.Errorf("第 %d 行时间戳无效: %w", i+1, err)
		}

		c := models.Candle{Timestamp: ts}
		for j, dst := range []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume} {
			if *dst, err = strconv.ParseFloat(record[j+1], 64); err != nil {
				return nil, fmt.Errorf("第 %d 行第 %d 列无效: %w", i+1, j+2, err)
			}
		}
		candles = append(candles, c)
	}
	return candles, nil
}
