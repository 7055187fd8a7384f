package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrUnsupportedFormat is returned for sounds in a format Decode does not
// handle.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decode decodes sound data, choosing the codec from the path extension.
func Decode(name string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	rc := io.NopCloser(bytes.NewReader(data))

	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".wav":
		s, f, err = wav.Decode(rc)
	case ".mp3":
		s, f, err = mp3.Decode(rc)
	case ".ogg":
		s, f, err = vorbis.Decode(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return s, f, nil
}
