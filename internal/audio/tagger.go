// Package audio writes planned tags into mp3 files without touching the
// audio frames.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"

	"github.com/vmassuchetto/beets-ydl/internal/segment"
)

// Tagger writes a segment tag map as ID3 frames.
//
// Well known keys land in their dedicated frames:
//   - title (TIT2), artist (TPE1), album (TALB)
//   - year (TYER on v2.3 tags, TDRC on v2.4)
//   - track (TRCK)
//
// Everything else is stored as a TXXX frame described by its key.
type Tagger struct {
	// Version is the ID3v2 version used when a file has no tag yet.
	Version byte
}

func NewTagger() *Tagger {
	return &Tagger{Version: 4}
}

// Supports reports whether path can carry ID3v2 tags.
func (t *Tagger) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

// WriteTags replaces the frames named by tags and saves the file in place.
func (t *Tagger) WriteTags(path string, tags map[string]string) error {
	if !t.Supports(path) {
		return fmt.Errorf("cannot write id3 tags to %s", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("tag %s: %w", filepath.Base(path), err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag of %s: %w", filepath.Base(path), err)
	}
	defer tag.Close()

	if !tag.HasFrames() && t.Version != 0 {
		tag.SetVersion(t.Version)
	}
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	for _, key := range segment.SortedTagKeys(tags) {
		t.applyTag(tag, key, tags[key])
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag of %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (t *Tagger) applyTag(tag *id3v2.Tag, key string, value string) {
	switch key {
	case "title":
		tag.SetTitle(value)
	case "artist":
		tag.SetArtist(value)
	case "album":
		tag.SetAlbum(value)
	case "year":
		tag.SetYear(value)
	case "track":
		// TRCK must be numeric; anything else is dropped.
		if _, err := strconv.Atoi(value); err == nil {
			tag.DeleteFrames("TRCK")
			tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, value)
		}
	default:
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: key,
			Value:       value,
		})
	}
}
