package jptime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListingForm(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.November, 20, 12, 0, 0, 0, JST)

	got, ok := Parse("11/11(火) 10:00配信", now)
	require.True(t, ok, "listing form should parse")
	assert.Equal(t, "2024/11/11 10:00:00", Format(got))
}

func TestParseShortYearForm(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.November, 20, 12, 0, 0, 0, JST)

	got, ok := Parse("24/11/11 10:00", now)
	require.True(t, ok)
	assert.Equal(t, "2024/11/11 10:00:00", Format(got))
}

func TestParseCanonicalRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.January, 10, 0, 0, 0, 0, JST)

	got, ok := Parse("2024/11/11 10:00:28", now)
	require.True(t, ok)
	assert.Equal(t, "2024/11/11 10:00:28", Format(got))
}

func TestParseYearlessRollsBackAcrossNewYear(t *testing.T) {
	t.Parallel()

	// A December date seen in early January belongs to the previous year.
	now := time.Date(2024, time.January, 5, 9, 0, 0, 0, JST)

	got, ok := Parse("12/31 23:00", now)
	require.True(t, ok)
	assert.Equal(t, "2023/12/31 23:00:00", Format(got))
}

func TestParseYearlessWithinWindowKeepsCurrentYear(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, JST)

	got, ok := Parse("6/15 08:30", now)
	require.True(t, ok)
	assert.Equal(t, "2024/06/15 08:30:00", Format(got))
}

func TestParseGarbage(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, JST)

	_, ok := Parse("no date here", now)
	assert.False(t, ok)

	_, ok = Parse("", now)
	assert.False(t, ok)
}

func TestCleanStripsWeekdayAndDeliveryMarker(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "11/11 10:00", Clean("11/11(火) 10:00配信"))
	assert.Equal(t, "1/2 09:15", Clean(" 1/2(月) 09:15 "))
}

func TestNormalizeFallsBackToCleanedRaw(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, JST)

	got, ok := Normalize("昨日のどこか(火)", now)
	assert.False(t, ok)
	assert.Equal(t, "昨日のどこか", got)
}
