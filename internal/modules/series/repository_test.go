package series

import (
	"database/sql"
	"math"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.EnsureSchema())
	return repo
}

func TestSaveAndGetSeries(t *testing.T) {
	repo := setupRepo(t)

	s := Series{Name: "spx", Obs: []Observation{
		{Date: "2024-01-02", Value: 100.0},
		{Date: "2024-01-03", Value: math.NaN()},
		{Date: "2024-01-04", Value: 102.0},
	}}
	require.NoError(t, repo.SaveSeries(s))

	got, err := repo.GetSeries("spx", "", "")
	require.NoError(t, err)
	require.Len(t, got.Obs, 3)
	assert.Equal(t, 100.0, got.Obs[0].Value)
	assert.True(t, math.IsNaN(got.Obs[1].Value))
	assert.Equal(t, 102.0, got.Obs[2].Value)
}

func TestSaveSeriesUpserts(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.SaveSeries(Series{Name: "spx", Obs: []Observation{
		{Date: "2024-01-02", Value: 100.0},
	}}))
	require.NoError(t, repo.SaveSeries(Series{Name: "spx", Obs: []Observation{
		{Date: "2024-01-02", Value: 99.5},
		{Date: "2024-01-03", Value: 101.0},
	}}))

	got, err := repo.GetSeries("spx", "", "")
	require.NoError(t, err)
	require.Len(t, got.Obs, 2)
	assert.Equal(t, 99.5, got.Obs[0].Value)
}

func TestSaveSeriesRejectsUnsortedDates(t *testing.T) {
	repo := setupRepo(t)

	err := repo.SaveSeries(Series{Name: "spx", Obs: []Observation{
		{Date: "2024-01-03", Value: 100.0},
		{Date: "2024-01-02", Value: 101.0},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not strictly increasing")
}

func TestGetSeriesRange(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.SaveSeries(Series{Name: "ust10y", Obs: []Observation{
		{Date: "2024-01-02", Value: 4.1},
		{Date: "2024-01-03", Value: 4.2},
		{Date: "2024-01-04", Value: 4.15},
	}}))

	got, err := repo.GetSeries("ust10y", "2024-01-03", "2024-01-03")
	require.NoError(t, err)
	require.Len(t, got.Obs, 1)
	assert.Equal(t, "2024-01-03", got.Obs[0].Date)

	empty, err := repo.GetSeries("missing", "", "")
	require.NoError(t, err)
	assert.Empty(t, empty.Obs)
}

func TestListSeries(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.SaveSeries(Series{Name: "ust10y", Obs: []Observation{
		{Date: "2024-01-02", Value: 4.1},
	}}))
	require.NoError(t, repo.SaveSeries(Series{Name: "spx", Obs: []Observation{
		{Date: "2024-01-02", Value: 100.0},
	}}))

	names, err := repo.ListSeries()
	require.NoError(t, err)
	assert.Equal(t, []string{"spx", "ust10y"}, names)
}
