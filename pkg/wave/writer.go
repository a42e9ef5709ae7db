package wave

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/memocut/memocut/pkg/audio"
)

// Writer writes interleaved int16 frames sequentially to a new WAV file.
// The output format mirrors whatever [audio.Format] it was created with, so
// edited files need no player reconfiguration. Not safe for concurrent use.
type Writer struct {
	f             *os.File
	enc           *wav.Encoder
	format        audio.Format
	framesWritten int64
}

// CreateWriter creates (or truncates) a WAV file at path for sequential
// writing in the given format.
func CreateWriter(path string, format audio.Format) (*Writer, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("wave: create %q: %v: %w", path, format, ErrUnsupportedFormat)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wave: create %q: %w", path, err)
	}
	enc := wav.NewEncoder(f, format.SampleRate, 16, format.Channels, 1)
	return &Writer{f: f, enc: enc, format: format}, nil
}

// WriteFrames appends interleaved samples to the file. The sample count
// must be a whole number of frames.
func (w *Writer) WriteFrames(samples []int16) error {
	if len(samples)%w.format.Channels != 0 {
		return fmt.Errorf("wave: write %q: %d samples is not a whole frame count for %d channels",
			w.f.Name(), len(samples), w.format.Channels)
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: w.format.Channels, SampleRate: w.format.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("wave: write %q: %w", w.f.Name(), err)
	}
	w.framesWritten += int64(len(samples) / w.format.Channels)
	return nil
}

// FramesWritten returns the number of frames written so far.
func (w *Writer) FramesWritten() int64 { return w.framesWritten }

// Close finalises the WAV headers and closes the file. Must be called for
// the file to be playable.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("wave: finalise %q: %w", w.f.Name(), err)
	}
	return w.f.Close()
}

// EditedPath derives a fresh, timestamp-qualified output path for an edit of
// src: <stem>_edited_<timestamp><ext> in the same directory. Millisecond
// timestamps keep outputs of back-to-back edits from colliding.
func EditedPath(src string, now time.Time) string {
	dir := filepath.Dir(src)
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_edited_%d%s", stem, now.UnixMilli(), ext))
}
