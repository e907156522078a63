package audio

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	playerrors "github.com/jscyril/playsync/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

type decodeFunc func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".mp3":  mp3.Decode,
	".wav":  func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(r) },
	".flac": func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(r) },
}

// SupportedFormats lists the extensions OpenFile can decode
func SupportedFormats() []string {
	return []string{".mp3", ".wav", ".flac"}
}

// IsSupported reports whether path has a decodable extension
func IsSupported(path string) bool {
	return lo.Contains(SupportedFormats(), strings.ToLower(filepath.Ext(path)))
}

// OpenFile opens path on fs and decodes it by extension. Closing the
// returned streamer closes the file.
func OpenFile(fs afero.Fs, path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, beep.Format{}, playerrors.NewPlayerError("open", path,
			fmt.Errorf("%w: %s", playerrors.ErrInvalidFormat, ext))
	}

	file, err := fs.Open(path)
	if err != nil {
		return nil, beep.Format{}, playerrors.NewPlayerError("open", path, err)
	}

	streamer, format, err := decode(file)
	if err != nil {
		file.Close()
		return nil, beep.Format{}, playerrors.NewPlayerError("decode", path, err)
	}
	return streamer, format, nil
}
