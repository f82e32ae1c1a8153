package gps

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/airtrace/internal/correlate"
)

func TestParseSentenceGGA(t *testing.T) {
	coords, ok, err := ParseSentence("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 48.1173, coords.Lat, 0.0001)
	assert.InDelta(t, 11.5167, coords.Lon, 0.0001)
}

func TestParseSentenceGGANoFix(t *testing.T) {
	_, ok, err := ParseSentence("$GPGGA,123519,,,,,0,00,,,M,,M,,*66")
	require.NoError(t, err)
	assert.False(t, ok, "quality 0 means no fix")
}

func TestParseSentenceRMC(t *testing.T) {
	coords, ok, err := ParseSentence("$GPRMC,123519,A,4807.038,S,01131.000,W,022.4,084.4,230394,003.1,W*6A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, coords.Lat < 0, "southern hemisphere is negative")
	assert.True(t, coords.Lon < 0, "western hemisphere is negative")
	assert.InDelta(t, -48.1173, coords.Lat, 0.0001)
	assert.InDelta(t, -11.5167, coords.Lon, 0.0001)
}

func TestParseSentenceRMCVoid(t *testing.T) {
	_, ok, err := ParseSentence("$GPRMC,123519,V,,,,,,,230394,,*31")
	require.NoError(t, err)
	assert.False(t, ok, "status V means void fix")
}

func TestParseSentenceIgnoresOtherTypes(t *testing.T) {
	for _, line := range []string{
		"$GPGSV,3,1,11,03,03,111,00,04,15,270,00,06,01,010,00,13,06,292,00*74",
		"$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K*48",
		"",
		"garbage",
	} {
		_, ok, err := ParseSentence(line)
		require.NoError(t, err, "line %q", line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestParseSentenceMalformed(t *testing.T) {
	_, ok, err := ParseSentence("$GPGGA,123519,xxyy.zz,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	s := &Static{Coords: correlate.Coordinates{Lat: 10, Lon: 20}}
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, correlate.Coordinates{Lat: 10, Lon: 20}, s.Coordinates())
	require.NoError(t, s.Disconnect())
}

func TestFuncSource(t *testing.T) {
	lat := 0.0
	src := Func(func() correlate.Coordinates {
		lat++
		return correlate.Coordinates{Lat: lat, Lon: 20}
	})
	require.NoError(t, src.Connect(context.Background()))
	first := src.Coordinates()
	second := src.Coordinates()
	assert.Equal(t, 1.0, first.Lat)
	assert.Equal(t, 2.0, second.Lat)
	assert.False(t, math.Signbit(second.Lon))
}
