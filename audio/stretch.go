// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"
	"math"
	"sync/atomic"
)

// StretchParams tune the overlap-add time stretcher. Longer sequences sound
// smoother on music but blur transients, the defaults favour little stutter.
type StretchParams struct {
	// SequenceMs is the length of each processed window.
	SequenceMs int
	// OverlapMs is the crossfade between consecutive windows.
	OverlapMs int
	// SeekWindowMs is how far ahead the best splice point is searched.
	SeekWindowMs int
	// QuickSeek trades splice quality for a coarser, cheaper search.
	QuickSeek bool
}

func DefaultStretchParams() StretchParams {
	return StretchParams{
		SequenceMs:   40,
		OverlapMs:    8,
		SeekWindowMs: 15,
		QuickSeek:    false,
	}
}

func (p StretchParams) Validate() error {
	switch {
	case p.OverlapMs <= 0:
		return fmt.Errorf("%w: overlap must be positive", ErrInvalidStretch)
	case p.SequenceMs < 2*p.OverlapMs:
		return fmt.Errorf("%w: sequence must be at least twice the overlap", ErrInvalidStretch)
	case p.SeekWindowMs < 0:
		return fmt.Errorf("%w: negative seek window", ErrInvalidStretch)
	}
	return nil
}

// Stretcher changes the playback tempo of src without changing its pitch,
// using waveform-similarity overlap-add. The tempo can be changed from any
// goroutine while another one reads.
type Stretcher struct {
	src      Source
	channels int
	rate     int

	seqFrames  int
	ovlFrames  int
	seekFrames int
	seekStep   int

	tempo    atomic.Uint64 // math.Float64bits of the ratio
	position atomic.Int64  // source frames consumed

	in      []float32
	out     []float32
	outPos  int
	mid     []float32
	haveMid bool
	fract   float64

	readBuf []float32
	empty   int
	srcEOF  bool
	drained bool
}

func NewStretcher(src Source, p StretchParams) (*Stretcher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if src.SampleRate() <= 0 {
		return nil, ErrInvalidRate
	}
	if src.Channels() <= 0 {
		return nil, ErrInvalidChannels
	}

	rate := src.SampleRate()
	channels := src.Channels()
	toFrames := func(ms int) int { return ms * rate / 1000 }

	s := &Stretcher{
		src:        src,
		channels:   channels,
		rate:       rate,
		seqFrames:  max(toFrames(p.SequenceMs), 2),
		ovlFrames:  max(toFrames(p.OverlapMs), 1),
		seekFrames: toFrames(p.SeekWindowMs),
		seekStep:   1,
		readBuf:    make([]float32, 4096*channels),
	}
	if s.seqFrames < 2*s.ovlFrames {
		return nil, fmt.Errorf("%w: window too short for %d Hz", ErrInvalidStretch, rate)
	}
	if p.QuickSeek {
		s.seekStep = 4
	}
	s.mid = make([]float32, s.ovlFrames*channels)
	s.tempo.Store(math.Float64bits(1.0))

	return s, nil
}

func (s *Stretcher) SampleRate() int { return s.rate }
func (s *Stretcher) Channels() int   { return s.channels }
func (s *Stretcher) BufSize() int    { return s.src.BufSize() }

func (s *Stretcher) Close() error {
	if err := s.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// SetTempo sets the playback rate, 1.0 being the original speed.
func (s *Stretcher) SetTempo(ratio float64) error {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return fmt.Errorf("%w: tempo %v", ErrInvalidStretch, ratio)
	}
	s.tempo.Store(math.Float64bits(ratio))
	return nil
}

// SetTempoChange sets the tempo as a percentage relative to the original,
// so 0 keeps the speed and 50 plays one and a half times faster.
func (s *Stretcher) SetTempoChange(percent float64) error {
	return s.SetTempo(1 + percent/100)
}

func (s *Stretcher) Tempo() float64 {
	return math.Float64frombits(s.tempo.Load())
}

// SetPosition rebases the reported position, used after the source was
// skipped ahead before stretching started.
func (s *Stretcher) SetPosition(frame int64) {
	s.position.Store(frame)
}

// Position reports how many source frames have been consumed. It is
// independent of the tempo.
func (s *Stretcher) Position() int64 {
	return s.position.Load()
}

func (s *Stretcher) ReadSamples(dst []float32) (int, error) {
	if len(dst)%s.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	for s.pending() < len(dst) && !s.drained {
		if s.process() {
			continue
		}
		if s.srcEOF {
			s.flush()
			break
		}
		if err := s.fill(); err != nil {
			return 0, err
		}
	}

	n := copy(dst, s.out[s.outPos:])
	s.outPos += n
	if s.outPos == len(s.out) {
		s.out = s.out[:0]
		s.outPos = 0
	}

	if n == 0 && s.drained {
		return 0, io.EOF
	}
	return n, nil
}

func (s *Stretcher) pending() int { return len(s.out) - s.outPos }

func (s *Stretcher) inFrames() int { return len(s.in) / s.channels }

func (s *Stretcher) fill() error {
	n, err := s.src.ReadSamples(s.readBuf)
	s.in = append(s.in, s.readBuf[:n-n%s.channels]...)

	switch {
	case err == io.EOF:
		s.srcEOF = true
	case err != nil:
		return fmt.Errorf("%w", err)
	case n == 0:
		if s.empty++; s.empty > maxEmptyReads {
			return io.ErrNoProgress
		}
	default:
		s.empty = 0
	}
	return nil
}

// process runs one overlap-add step if enough input is buffered.
func (s *Stretcher) process() bool {
	tempo := s.Tempo()
	nominal := tempo * float64(s.seqFrames-s.ovlFrames)
	need := max(int(nominal+0.5)+s.ovlFrames, s.seqFrames) + s.seekFrames
	if s.inFrames() < need {
		return false
	}

	c := s.channels
	if !s.haveMid {
		s.out = append(s.out, s.in[:(s.seqFrames-s.ovlFrames)*c]...)
		copy(s.mid, s.in[(s.seqFrames-s.ovlFrames)*c:s.seqFrames*c])
		s.haveMid = true
	} else {
		off := s.bestOffset()
		s.crossfade(s.in[off*c : (off+s.ovlFrames)*c])
		s.out = append(s.out, s.in[(off+s.ovlFrames)*c:(off+s.seqFrames-s.ovlFrames)*c]...)
		copy(s.mid, s.in[(off+s.seqFrames-s.ovlFrames)*c:(off+s.seqFrames)*c])
	}

	s.fract += nominal
	skip := int(s.fract)
	s.fract -= float64(skip)
	s.consume(skip)

	return true
}

func (s *Stretcher) consume(frames int) {
	frames = min(frames, s.inFrames())
	s.in = append(s.in[:0], s.in[frames*s.channels:]...)
	s.position.Add(int64(frames))
}

// bestOffset finds the frame offset within the seek window whose head best
// matches the previous window's tail.
func (s *Stretcher) bestOffset() int {
	best, bestScore := 0, math.Inf(-1)

	score := func(off int) float64 {
		seg := s.in[off*s.channels : (off+s.ovlFrames)*s.channels]
		var corr, energy float64
		for i, m := range s.mid {
			v := float64(seg[i])
			corr += float64(m) * v
			energy += v * v
		}
		return corr / math.Sqrt(energy+1e-9)
	}

	for off := 0; off <= s.seekFrames; off += s.seekStep {
		if sc := score(off); sc > bestScore {
			best, bestScore = off, sc
		}
	}

	if s.seekStep > 1 {
		lo := max(best-s.seekStep+1, 0)
		hi := min(best+s.seekStep-1, s.seekFrames)
		for off := lo; off <= hi; off++ {
			if sc := score(off); sc > bestScore {
				best, bestScore = off, sc
			}
		}
	}

	return best
}

// crossfade appends the linear blend of the stored tail into seg.
func (s *Stretcher) crossfade(seg []float32) {
	c := s.channels
	for f := range s.ovlFrames {
		w := float32(f) / float32(s.ovlFrames)
		for ch := range c {
			i := f*c + ch
			s.out = append(s.out, s.mid[i]*(1-w)+seg[i]*w)
		}
	}
}

// flush emits whatever is left once the source ended.
func (s *Stretcher) flush() {
	if s.haveMid {
		s.out = append(s.out, s.mid...)
		s.consume(min(s.ovlFrames, s.inFrames()))
	}
	s.out = append(s.out, s.in...)
	s.consume(s.inFrames())
	s.drained = true
}
