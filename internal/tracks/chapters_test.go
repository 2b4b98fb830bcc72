package tracks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const probeDump = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'abc.m4a':
  Metadata:
    major_brand     : M4A
    title           : Whole Thing
  Duration: 00:10:00.00, start: 0.000000, bitrate: 128 kb/s
    Chapter #0:0: start 0.000000, end 120.000000
      Metadata:
        title           : 01. Intro!
    Chapter #0:1: start 120.000000, end 300.500000
      Metadata:
        title           : Second Song
        artist          : Guest Artist
    Chapter #0:3: start 300.500000, end 600.000000
  Stream #0:0(und): Audio: aac (LC) (mp4a / 0x6134706D), 44100 Hz, stereo, fltp, 128 kb/s (default)
    Metadata:
      handler_name    : SoundHandler
`

func TestParseProbeText(t *testing.T) {
	records, err := ParseProbeText(probeDump)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 0, records[0].Ordinal)
	assert.Equal(t, 0.0, records[0].Start)
	assert.Equal(t, 120.0, records[0].End)
	assert.Equal(t, map[string]string{"title": "01. Intro!"}, records[0].Tags)

	assert.Equal(t, 1, records[1].Ordinal)
	assert.Equal(t, 300.5, records[1].End)
	assert.Equal(t, "Guest Artist", records[1].Tags["artist"])

	assert.Equal(t, 3, records[2].Ordinal)
	assert.Empty(t, records[2].Tags)
}

func TestParseProbeTextWithoutChapters(t *testing.T) {
	records, err := ParseProbeText("Input #0, mp3, from 'a.mp3':\n  Duration: 00:03:00.00\n")
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = ParseProbeText("")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseProbeTextMalformed(t *testing.T) {
	_, err := ParseProbeText("    Chapter #0:0: begins somewhere\n")
	assert.True(t, errors.Is(err, ErrMalformedProbeOutput))
}

func TestParseProbeJSON(t *testing.T) {
	payload := []byte(`{
  "chapters": [
    {"id": 0, "time_base": "1/1000", "start": 0, "start_time": "0.000000", "end": 120000, "end_time": "120.000000", "tags": {"title": "Intro"}},
    {"id": 1, "time_base": "1/1000", "start": 120000, "start_time": "120.000000", "end": 300000, "end_time": "300.000000", "tags": {"title": "Second"}}
  ]
}`)

	records, err := ParseProbeJSON(payload)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 120.0, records[1].Start)
	assert.Equal(t, "Second", records[1].Tags["title"])
}

func TestParseProbeJSONEmptyAndMalformed(t *testing.T) {
	records, err := ParseProbeJSON([]byte("{\n\n}\n"))
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = ParseProbeJSON(nil)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = ParseProbeJSON([]byte("not json"))
	assert.True(t, errors.Is(err, ErrMalformedProbeOutput))

	_, err = ParseProbeJSON([]byte(`{"chapters":[{"id":0,"start_time":"x","end_time":"1"}]}`))
	assert.True(t, errors.Is(err, ErrMalformedProbeOutput))
}

func TestFromChaptersRenumbersAndNormalizes(t *testing.T) {
	records, err := ParseProbeText(probeDump)
	require.NoError(t, err)

	got, skipped := FromChapters(records)
	require.Empty(t, skipped)
	require.Len(t, got, 3)

	for i, track := range got {
		assert.Equal(t, i+1, track.Ordinal)
	}
	assert.Equal(t, "01 Intro", got[0].Title)
	assert.Equal(t, "Second Song", got[1].Title)
	assert.Equal(t, map[string]string{"artist": "Guest Artist"}, got[1].Tags)
	assert.Empty(t, got[2].Title)
}

func TestFromChaptersDropsEmptyChapter(t *testing.T) {
	got, skipped := FromChapters([]ChapterRecord{
		{Ordinal: 4, Start: 0, End: 10},
		{Ordinal: 5, Start: 10, End: 10},
		{Ordinal: 9, Start: 10, End: 20},
	})

	require.Len(t, skipped, 1)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Ordinal)
	assert.Equal(t, 10.0, got[1].Start)
}
