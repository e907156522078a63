// Package library describes media sources for display.
package library

import (
	"crypto/md5"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/jscyril/playsync/api"
	"github.com/spf13/afero"
)

// MetadataReader extracts tag metadata from audio files
type MetadataReader struct {
	fs afero.Fs
}

// NewMetadataReader creates a metadata reader over fs
func NewMetadataReader(fs afero.Fs) *MetadataReader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &MetadataReader{fs: fs}
}

// Read returns a Track for the file at filePath. Files without readable
// tags are described by their file name.
func (r *MetadataReader) Read(filePath string) (*api.Track, error) {
	file, err := r.fs.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return FromTags(file, filePath), nil
}

// FromTags builds a Track from the tags in rs, falling back to the file
// name when there are none.
func FromTags(rs io.ReadSeeker, filePath string) *api.Track {
	track := &api.Track{
		ID:       generateTrackID(filePath),
		Title:    titleFromPath(filePath),
		FilePath: filePath,
		Duration: api.DurationUnknown,
	}

	metadata, err := tag.ReadFrom(rs)
	if err != nil {
		return track
	}

	track.Title = getOrDefault(metadata.Title(), track.Title)
	track.Artist = getOrDefault(metadata.Artist(), "Unknown Artist")
	track.Album = getOrDefault(metadata.Album(), "Unknown Album")
	track.Genre = metadata.Genre()
	track.Year = metadata.Year()
	track.TrackNum, _ = metadata.Track()
	return track
}

// generateTrackID creates a unique ID for a track based on its file path
func generateTrackID(filePath string) string {
	hash := md5.Sum([]byte(filePath))
	return fmt.Sprintf("track-%x", hash[:8])
}

func titleFromPath(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// getOrDefault returns the value if non-empty, otherwise returns the default
func getOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
