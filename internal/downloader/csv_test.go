package downloader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bollinger-optimizer-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	data := `open_time,open,high,low,close,volume,close_time,quote_asset_volume,number_of_trades,taker_buy_base_asset_volume,taker_buy_quote_asset_volume
1704067200000,42283.58,42298.62,42261.02,42298.61,35.92724,1704067259999,1519239.5,1327,20.1,850000.1
1704067260000,42298.62,42320,42298.61,42301,21.5,1704067319999,909000.2,900,10.2,431000.5
`
	candles, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, models.Candle{
		Timestamp: 1704067200000,
		Open:      42283.58,
		High:      42298.62,
		Low:       42261.02,
		Close:     42298.61,
		Volume:    35.92724,
	}, candles[0])
	assert.Equal(t, 42301.0, candles[1].Close)
}

func TestReadCSVWithoutHeaderAndShortRows(t *testing.T) {
	candles, err := ReadCSV(strings.NewReader("1,1,2,0.5,1.5,10\n"))
	require.NoError(t, err)
	assert.Len(t, candles, 1)

	_, err = ReadCSV(strings.NewReader("1,1,2\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("1,1,2,0.5,1.5,10\n2,x,2,0.5,1.5,10\n"))
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BTCUSDT.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,1,2,0.5,1.5,10\n"), 0o644))
	candles, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Len(t, candles, 1)

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
