package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

func int64Ptr(v int64) *int64 { return &v }

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [title]", searchCmd.Use)
}

func TestSearchCmd_Short(t *testing.T) {
	assert.Equal(t, "Find catalog items matching a title", searchCmd.Short)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "search")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasFlags(t *testing.T) {
	for _, name := range []string{"k", "group", "cutoff", "hard", "exclude", "json"} {
		assert.NotNil(t, searchCmd.Flags().Lookup(name), "flag %s should exist", name)
	}
}

func TestSearchCmd_OptionalFlagsStayUnset(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "search", "n95 masks")

	require.NoError(t, err)
	q := current.matching.query
	assert.Equal(t, "n95 masks", q.Query)
	assert.Equal(t, 0, q.K)
	assert.Nil(t, q.GroupID)
	assert.Nil(t, q.DistanceCutoff)
	assert.Nil(t, q.HardCutoff)
	assert.Empty(t, q.ExcludeIDs)
}

func TestSearchCmd_PassesFlags(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "search", "-k", "5", "--group", "3", "--cutoff", "0.4",
		"--hard", "0", "--exclude", "1,9", "n95 masks")

	require.NoError(t, err)
	q := current.matching.query
	assert.Equal(t, 5, q.K)
	assert.Equal(t, int64(3), *q.GroupID)
	assert.InDelta(t, 0.4, *q.DistanceCutoff, 1e-12)
	require.NotNil(t, q.HardCutoff, "an explicit zero is still set")
	assert.Equal(t, 0.0, *q.HardCutoff)
	assert.Equal(t, []int64{1, 9}, q.ExcludeIDs)
}

func TestSearchCmd_Table(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.matching.results = []domain.MatchResult{
		{ID: 4, Title: "N95 masks", GroupID: int64Ptr(7), Distance: 0.05, Similarity: 0.95, Strength: domain.MatchHard},
		{ID: 9, Title: "cloth masks", Distance: 0.3, Similarity: 0.7, Strength: domain.MatchSoft},
	}

	out, err := execute(t, "search", "n95 masks")

	require.NoError(t, err)
	assert.Contains(t, out, `Matches for "n95 masks":`)
	assert.Contains(t, out, "[1] #4 N95 masks (offer 7)")
	assert.Contains(t, out, "hard  distance 0.050  similarity 0.950")
	assert.Contains(t, out, "[2] #9 cloth masks")
	assert.Contains(t, out, "soft  distance 0.300")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.matching.results = []domain.MatchResult{
		{ID: 4, Title: "N95 masks", Distance: 0.05, Similarity: 0.95, Strength: domain.MatchHard},
	}

	out, err := execute(t, "search", "--json", "n95 masks")

	require.NoError(t, err)
	assert.Contains(t, out, `"id": 4`)
	assert.Contains(t, out, `"strength": "hard"`)
}

func TestSearchCmd_ServiceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.matching.err = domain.ErrUpstreamUnavailable

	_, err := execute(t, "search", "test")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestOutputSearchJSON_EmptyResults(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	err := outputSearchJSON(rootCmd, nil)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "[]")
}

func TestOutputSearchTable_EmptyResults(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	err := outputSearchTable(rootCmd, "zzz", []domain.MatchResult{})

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "No matches found")
}
