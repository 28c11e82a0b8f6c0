package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasyap/okx-corr/pkg/market"
)

var when = time.Date(2025, 1, 6, 12, 1, 0, 0, time.Local)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

func TestFiles_WritesPerInstrumentStreams(t *testing.T) {
	dir := t.TempDir()
	f := NewFiles(FilesConfig{
		DataDir:    filepath.Join(dir, "data"),
		TimingFile: filepath.Join(dir, "timing.csv"),
	}, nil)
	defer f.Close()

	f.RecordTrade("BTC-USDT", market.Trade{EventTime: when, Price: 101.234, Volume: 0.5, ProcessingDelay: 1500 * time.Nanosecond})
	f.RecordMovingAverage("BTC-USDT", market.MovingAverage{ComputedAt: when, MovingAvg: 101, TotalVolume: 4, AvgDelay: time.Microsecond})
	f.RecordCorrelation("BTC-USDT", when, market.BestPeer{Symbol: "ETH-USDT", Correlation: 0.98765, ContributingMATime: when.Add(-time.Minute)})
	f.RecordTiming(when, 1234*time.Millisecond)

	ts := "2025-01-06 12:01:00"
	assert.Equal(t, []string{
		"Timestamp,Price,Volume,ProcessingDelay",
		ts + ",101.23,0.5000,0.000001500",
	}, readLines(t, filepath.Join(dir, "data", "BTC-USDT", "transactions.csv")))
	assert.Equal(t, []string{
		"Timestamp,MovingAvg,TotalVolume,AvgProcessingDelay",
		ts + ",101.00,4.0000,0.000001000",
	}, readLines(t, filepath.Join(dir, "data", "BTC-USDT", "moving_average.csv")))
	assert.Equal(t, []string{
		"Timestamp,OtherSymbol,Correlation,MaxCorrMATime",
		ts + ",ETH-USDT,0.9877,2025-01-06 12:00:00",
	}, readLines(t, filepath.Join(dir, "data", "BTC-USDT", "correlation.csv")))
	assert.Equal(t, []string{
		"Timestamp,TimeDiff",
		ts + ",1.234",
	}, readLines(t, filepath.Join(dir, "timing.csv")))
}

func TestStream_HeaderOnlyOnNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timing.csv")

	s := OpenStream(path, TimingHeader, 0, nil)
	s.Write(TimingRow(when, time.Second)...)
	require.NoError(t, s.Close())

	s = OpenStream(path, TimingHeader, 0, nil)
	s.Write(TimingRow(when, 2*time.Second)...)
	require.NoError(t, s.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, "Timestamp,TimeDiff", lines[0])
	assert.True(t, strings.HasSuffix(lines[2], ",2.000"))
}

func TestStream_RotatedFilesKeepHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timing.csv")

	s := OpenStream(path, TimingHeader, 1, nil)
	filler := strings.Repeat("a", 1000)
	for i := 0; i < 1200; i++ {
		s.Write(FormatTimestamp(when), filler)
	}
	require.False(t, s.Disabled())
	require.NoError(t, s.Close())

	backups, err := filepath.Glob(filepath.Join(dir, "timing-*.csv"))
	require.NoError(t, err)
	require.NotEmpty(t, backups, "expected at least one rotation")

	rows := 0
	for _, p := range append(backups, path) {
		lines := readLines(t, p)
		assert.Equal(t, "Timestamp,TimeDiff", lines[0], "file %s", filepath.Base(p))
		for _, l := range lines[1:] {
			assert.NotEqual(t, "Timestamp,TimeDiff", l)
		}
		rows += len(lines) - 1

		fi, err := os.Stat(p)
		require.NoError(t, err)
		assert.LessOrEqual(t, fi.Size(), int64(megabyte))
	}
	assert.Equal(t, 1200, rows)
}

func TestStream_DisabledWhenDirectoryUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	f := NewFiles(FilesConfig{DataDir: blocker}, nil)
	assert.NotPanics(t, func() {
		f.RecordTrade("BTC-USDT", market.Trade{EventTime: when, Price: 1})
		f.RecordTrade("BTC-USDT", market.Trade{EventTime: when, Price: 2})
	})
	assert.True(t, f.streams("BTC-USDT").transactions.Disabled())
	assert.NoError(t, f.Close())
}

func TestCorrelationRow_NoPeer(t *testing.T) {
	row := CorrelationRow(when, market.BestPeer{Symbol: market.NoPeer, Correlation: market.NoCorrelation})
	assert.Equal(t, "N/A", row[1])
	assert.Equal(t, "-2.0000", row[2])
	assert.Equal(t, FormatTimestamp(time.Unix(0, 0)), row[3])
}

type countingRecorder struct {
	trades, mas, corrs, timings, idles int
}

func (c *countingRecorder) RecordTrade(string, market.Trade)                     { c.trades++ }
func (c *countingRecorder) RecordMovingAverage(string, market.MovingAverage)     { c.mas++ }
func (c *countingRecorder) RecordCorrelation(string, time.Time, market.BestPeer) { c.corrs++ }
func (c *countingRecorder) RecordTiming(time.Time, time.Duration)                { c.timings++ }
func (c *countingRecorder) RecordCPUIdle(time.Time, float64)                     { c.idles++ }

func TestMulti_FansOut(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	m := Multi{a, b}
	m.RecordTrade("X", market.Trade{})
	m.RecordMovingAverage("X", market.MovingAverage{})
	m.RecordCorrelation("X", when, market.BestPeer{})
	m.RecordTiming(when, 0)
	m.RecordCPUIdle(when, 50)

	for _, c := range []*countingRecorder{a, b} {
		assert.Equal(t, countingRecorder{1, 1, 1, 1, 1}, *c)
	}
}
