// SPDX-License-Identifier: EPL-2.0

package chartaudio

import (
	"fmt"

	"github.com/ik5/chartaudio/audio"
)

// RenderMono16 runs src through the music chain offline: tempo change by
// tempoRatio with the pitch kept, resampling to targetRate and a mono
// downmix. The result is 16-bit PCM, ready for wav.WriteWAV16.
func RenderMono16(src audio.Source, targetRate int, tempoRatio float64, params audio.StretchParams) ([]int16, error) {
	if err := validRatio(tempoRatio); err != nil {
		return nil, err
	}

	chain := src
	if tempoRatio != 1 {
		st, err := audio.NewStretcher(src, params)
		if err != nil {
			return nil, fmt.Errorf("creating tempo stream: %w", err)
		}
		if err := st.SetTempo(tempoRatio); err != nil {
			return nil, fmt.Errorf("%w", err)
		}
		chain = st
	}

	mono, err := audio.Conform(chain, targetRate, 1)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	pcm16, err := audio.ReadAllInt16(mono, 4096)
	if err != nil {
		return pcm16, fmt.Errorf("rendering: %w", err)
	}
	return pcm16, nil
}
