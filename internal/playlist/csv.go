// Package playlist reads and writes the game's track-list interchange file.
// The format is a small CSV: one header row carrying the playlist name,
// then one row per track.
package playlist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var ErrEmptyPlaylist = errors.New("playlist file has no tracks")

// Entry is one track of an imported playlist.
type Entry struct {
	Seq     int
	Title   string
	TrackID string
	Artist  string
}

// ShortTitle strips the metadata suffix streaming services append to track
// names ("Song - Remastered 2011"). The delimiter is space-hyphen-space;
// plain hyphens inside a title survive.
func ShortTitle(title string) string {
	return strings.SplitN(title, " - ", 2)[0]
}

// Write emits the playlist in the interchange format.
func Write(w io.Writer, name string, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{name, "track name", "track id"}); err != nil {
		return err
	}
	for _, e := range entries {
		seq := strconv.Itoa(e.Seq)
		if err := cw.Write([]string{seq, seq, e.Title, e.TrackID, e.Artist}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteFile(path, name string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write playlist: %w", err)
	}
	defer f.Close()
	return Write(f, name, entries)
}

// Read parses the interchange format and returns the playlist name and its
// entries with shortened titles.
func Read(r io.Reader) (string, []Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return "", nil, fmt.Errorf("read playlist header: %w", err)
	}
	name := header[0]
	var entries []Entry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("read playlist row: %w", err)
		}
		if len(row) < 5 {
			continue
		}
		seq, _ := strconv.Atoi(row[1])
		entries = append(entries, Entry{
			Seq:     seq,
			Title:   ShortTitle(row[2]),
			TrackID: row[3],
			Artist:  row[4],
		})
	}
	if len(entries) == 0 {
		return "", nil, ErrEmptyPlaylist
	}
	return name, entries, nil
}

func ReadFile(path string) (string, []Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open playlist: %w", err)
	}
	defer f.Close()
	return Read(f)
}
