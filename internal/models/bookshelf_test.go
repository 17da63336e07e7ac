package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	f, err = ParseFormat(" EPUB ")
	require.NoError(t, err)
	assert.Equal(t, FormatEPUB, f)

	_, err = ParseFormat("MOBI")
	assert.Error(t, err)
}

func TestFormatTraits(t *testing.T) {
	assert.True(t, FormatEPUB.Continuous())
	assert.False(t, FormatPDF.Continuous())
	assert.Equal(t, ".pdf", FormatPDF.Extension())
	assert.Equal(t, ".epub", FormatEPUB.Extension())
}

func TestLibraryEntry_NullRatingDecodesToZero(t *testing.T) {
	var entries []LibraryEntry
	body := `[
		{"bookId": 3, "name": "Dune", "format": "EPUB", "progress": "42%", "userRating": null, "lastReadDate": "Never"},
		{"bookId": 4, "name": "SICP", "format": "PDF", "progress": "0", "userRating": 5}
	]`
	require.NoError(t, json.Unmarshal([]byte(body), &entries))

	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].UserRating)
	assert.Equal(t, "42%", entries[0].Progress)
	assert.Equal(t, 5, entries[1].UserRating)
}

func TestRatingResult_FlattensSummary(t *testing.T) {
	var res RatingResult
	body := `{"message": "Rating submitted successfully", "userRating": 4, "averageRating": 3.5, "totalRatings": 2}`
	require.NoError(t, json.Unmarshal([]byte(body), &res))

	assert.Equal(t, 4, res.UserRating)
	assert.InDelta(t, 3.5, res.AverageRating, 0.0001)
	assert.Equal(t, 2, res.TotalRatings)
}
