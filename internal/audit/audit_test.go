package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() Entry {
	return Entry{
		Time:    time.Date(2025, 2, 3, 4, 5, 6, 0, time.Local),
		RunID:   "run-1",
		Dataset: "ceis",
		Stage:   "bronze",
		URL:     "https://api.portaldatransparencia.gov.br/api-de-dados/ceis",
		Params:  map[string]string{"pagina": "1", "codigoSancionado": "x"},
		Outcome: OutcomeCommitted,
		Records: 42,
		Pages:   3,
		Key:     "bronze/transparency/ceis.json",
	}
}

func TestFormat(t *testing.T) {
	out := Format(sampleEntry())

	assert.True(t, strings.HasPrefix(out, "[2025-02-03 04:05:06] Dataset: ceis\n"))
	assert.Contains(t, out, `Params: {"codigoSancionado":"x","pagina":"1"}`)
	assert.Contains(t, out, "Status: COMMITTED\n")
	assert.Contains(t, out, "Pages: 3\n")
	assert.Contains(t, out, "Records: 42\n")
	assert.True(t, strings.HasSuffix(out, separator+"\n"))

	skipped := sampleEntry()
	skipped.Outcome = OutcomeSkipped
	skipped.Reason = "no source changed"
	assert.Contains(t, Format(skipped), "Status: SKIPPED (no source changed)\n")

	failed := sampleEntry()
	failed.Outcome = OutcomeFailed
	failed.Error = "fetch failed"
	out = Format(failed)
	assert.NotContains(t, out, "Records:")
	assert.Contains(t, out, "Error: fetch failed\n")
}

func TestFileSink_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "data_sources.log")

	sink, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, sink.Record(context.Background(), sampleEntry()))
	require.NoError(t, sink.Close())

	// Reopening must append, not truncate
	sink, err = OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, sink.Record(context.Background(), sampleEntry()))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "Dataset: ceis"))
}

func TestSQLiteSink(t *testing.T) {
	sink, err := OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()

	first := sampleEntry()
	second := sampleEntry()
	second.Dataset = "cnep"
	second.Outcome = OutcomeSkipped
	second.Reason = "output exists"
	second.Params = nil
	second.Time = first.Time.Add(time.Minute)

	require.NoError(t, sink.Record(ctx, first))
	require.NoError(t, sink.Record(ctx, second))

	entries, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "cnep", entries[0].Dataset)
	assert.Equal(t, OutcomeSkipped, entries[0].Outcome)
	assert.Equal(t, "output exists", entries[0].Reason)
	assert.Nil(t, entries[0].Params)

	assert.Equal(t, "ceis", entries[1].Dataset)
	assert.Equal(t, 42, entries[1].Records)
	assert.Equal(t, first.Params, entries[1].Params)
	assert.Equal(t, first.Time.Unix(), entries[1].Time.Unix())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	for _, driver := range []string{"file", "sqlite", "none"} {
		sink, err := Open(driver, filepath.Join(dir, driver+".log"))
		require.NoError(t, err, driver)
		require.NoError(t, sink.Record(context.Background(), sampleEntry()))
		require.NoError(t, sink.Close())
	}

	_, err := Open("kafka", "")
	assert.Error(t, err)
}
