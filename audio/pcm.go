// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/ik5/chartaudio/utils"
)

// SampleFormat is the byte encoding produced by PCMReader.
type SampleFormat int

const (
	FormatFloat32LE SampleFormat = iota
	FormatInt16LE
)

func (f SampleFormat) BytesPerSample() int {
	if f == FormatInt16LE {
		return 2
	}
	return 4
}

func (f SampleFormat) String() string {
	if f == FormatInt16LE {
		return "s16"
	}
	return "f32"
}

// ParseSampleFormat accepts "f32" and "s16".
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch s {
	case "f32", "float32":
		return FormatFloat32LE, nil
	case "s16", "int16":
		return FormatInt16LE, nil
	}
	return 0, fmt.Errorf("unknown sample format %q", s)
}

// PCMReader encodes a Source as an interleaved little-endian byte stream.
// Reads never split a sample, partially delivered samples are kept for the
// next call.
type PCMReader struct {
	src    Source
	format SampleFormat

	samples []float32
	pending []byte
}

func NewPCMReader(src Source, format SampleFormat) *PCMReader {
	return &PCMReader{
		src:     src,
		format:  format,
		samples: make([]float32, max(src.BufSize(), 1024)),
	}
}

func (p *PCMReader) Read(b []byte) (int, error) {
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}

	bps := p.format.BytesPerSample()
	want := len(b) / bps
	if want == 0 {
		want = 1
	}
	ch := p.src.Channels()
	want = min(max(want, ch), len(p.samples))
	want -= want % ch

	n, err := p.src.ReadSamples(p.samples[:want])
	if n == 0 {
		return 0, err
	}

	encoded := b
	if n*bps > len(b) {
		encoded = make([]byte, n*bps)
	}
	p.encode(encoded, p.samples[:n])

	written := copy(b, encoded[:n*bps])
	if written < n*bps {
		p.pending = encoded[written : n*bps]
	}
	if err == io.EOF && len(p.pending) > 0 {
		err = nil
	}
	return written, err
}

func (p *PCMReader) encode(dst []byte, samples []float32) {
	switch p.format {
	case FormatInt16LE:
		for i, v := range samples {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(utils.Float32ToInt16(v)))
		}
	default:
		for i, v := range samples {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
		}
	}
}

func (p *PCMReader) Close() error {
	if err := p.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// OpenFunc opens a fresh stream positioned at startFrame.
type OpenFunc func(startFrame int64) (Source, error)

// SeekablePCMReader is a PCMReader that seeks by reopening its stream.
// It is safe for one reader and one seeking goroutine.
type SeekablePCMReader struct {
	open   OpenFunc
	format SampleFormat

	mu       sync.Mutex
	cur      *PCMReader
	channels int
	offset   int64
}

func NewSeekablePCMReader(open OpenFunc, format SampleFormat) (*SeekablePCMReader, error) {
	src, err := open(0)
	if err != nil {
		return nil, err
	}

	return &SeekablePCMReader{
		open:     open,
		format:   format,
		cur:      NewPCMReader(src, format),
		channels: src.Channels(),
	}, nil
}

func (r *SeekablePCMReader) frameSize() int64 {
	return int64(r.channels * r.format.BytesPerSample())
}

func (r *SeekablePCMReader) Read(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cur == nil {
		return 0, io.ErrClosedPipe
	}
	n, err := r.cur.Read(b)
	r.offset += int64(n)
	return n, err
}

// Seek supports io.SeekStart and io.SeekCurrent. Offsets are rounded down to
// a whole frame.
func (r *SeekablePCMReader) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += r.offset
	default:
		return r.offset, fmt.Errorf("unsupported whence: %d", whence)
	}
	if offset < 0 {
		return r.offset, errors.New("negative position")
	}
	offset -= offset % r.frameSize()
	if offset == r.offset && r.cur != nil {
		return offset, nil
	}

	src, err := r.open(offset / r.frameSize())
	if err != nil {
		return r.offset, err
	}
	if r.cur != nil {
		r.cur.Close()
	}
	r.cur = NewPCMReader(src, r.format)
	r.offset = offset

	return offset, nil
}

func (r *SeekablePCMReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	return err
}
