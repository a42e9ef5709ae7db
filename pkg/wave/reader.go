// Package wave provides frame-indexed random access to WAV files and
// sequential WAV writing, built on github.com/go-audio/wav for header
// parsing and encoding.
//
// The reader supports positioned reads at arbitrary frame offsets without
// decoding the whole file, which is what the segment editor and the silence
// analysis passes need. Only 16-bit linear PCM is supported; compressed or
// float WAV files are rejected at open time.
package wave

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"

	"github.com/memocut/memocut/pkg/audio"
)

// ErrUnsupportedFormat is returned by [OpenReader] for files that are not
// 16-bit linear PCM mono or stereo.
var ErrUnsupportedFormat = errors.New("wave: unsupported format (need 16-bit PCM, mono or stereo)")

// Reader gives frame-indexed random access to the PCM data of a WAV file.
// Not safe for concurrent use; each goroutine should open its own Reader.
type Reader struct {
	f           *os.File
	format      audio.Format
	dataStart   int64
	totalFrames int64
}

// OpenReader opens a WAV file for positioned frame reads. The format is
// discovered from the file header.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wave: open %q: %w", path, err)
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("wave: %q is not a valid WAV file: %w", path, ErrUnsupportedFormat)
	}

	format := audio.Format{SampleRate: int(d.SampleRate), Channels: int(d.NumChans)}
	if d.BitDepth != 16 || d.WavAudioFormat != 1 || !format.Valid() {
		f.Close()
		return nil, fmt.Errorf("wave: %q: %dHz %dch %d-bit fmt %d: %w",
			path, d.SampleRate, d.NumChans, d.BitDepth, d.WavAudioFormat, ErrUnsupportedFormat)
	}

	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("wave: locate PCM data in %q: %w", path, err)
	}
	dataLen := d.PCMLen()

	// FwdToPCM leaves the file positioned at the first PCM byte.
	dataStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wave: locate PCM data in %q: %w", path, err)
	}

	return &Reader{
		f:           f,
		format:      format,
		dataStart:   dataStart,
		totalFrames: dataLen / int64(format.BytesPerFrame()),
	}, nil
}

// Format returns the sample rate and channel count from the file header.
func (r *Reader) Format() audio.Format { return r.format }

// TotalFrames returns the number of frames in the PCM data chunk.
func (r *Reader) TotalFrames() int64 { return r.totalFrames }

// Duration returns the total duration in seconds.
func (r *Reader) Duration() float64 {
	return r.format.TimeForFrame(r.totalFrames)
}

// ReadFrames reads count interleaved frames starting at frame index at.
// Reads past the end of the file are truncated; a read entirely out of
// range returns an empty slice and no error.
func (r *Reader) ReadFrames(at, count int64) ([]int16, error) {
	if at < 0 {
		at = 0
	}
	if at >= r.totalFrames || count <= 0 {
		return nil, nil
	}
	if at+count > r.totalFrames {
		count = r.totalFrames - at
	}

	bpf := int64(r.format.BytesPerFrame())
	if _, err := r.f.Seek(r.dataStart+at*bpf, io.SeekStart); err != nil {
		return nil, fmt.Errorf("wave: seek to frame %d: %w", at, err)
	}

	buf := make([]byte, count*bpf)
	if _, err := io.ReadFull(r.f, buf); err != nil {
		return nil, fmt.Errorf("wave: read %d frames at %d: %w", count, at, err)
	}
	return audio.BytesToSamples(buf), nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.f.Close() }
