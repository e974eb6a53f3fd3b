package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelrank/reelrank/internal/catalog"
	"github.com/reelrank/reelrank/internal/pipeline"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"run"},
		{"serve"},
		{"seen", "rebuild"},
		{"feedback", "ingest"},
		{"weights", "tune"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestPrintItems(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printItems(&buf, nil))
	assert.Equal(t, "No recommendations.\n", buf.String())

	buf.Reset()
	items := []pipeline.OutputItem{
		{Candidate: catalog.Candidate{Title: "First Light", Year: 2024, Kind: catalog.KindMovie}, Rank: 1, Match: 88.4, Why: "Critics 8.0; 2024"},
		{Candidate: catalog.Candidate{Title: "Undated", Kind: catalog.KindSeries}, Rank: 2, Match: 51},
	}
	require.NoError(t, printItems(&buf, items))

	out := buf.String()
	assert.Contains(t, out, "MATCH")
	assert.Contains(t, out, "88.4")
	assert.Contains(t, out, "First Light")
	assert.Contains(t, out, "Critics 8.0; 2024")
	assert.Contains(t, out, "series")
}
