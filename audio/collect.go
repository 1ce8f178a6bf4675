// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"

	"github.com/ik5/chartaudio/utils"
)

// ReadAllInt16 drains src and returns its samples as 16-bit PCM, still
// interleaved.
func ReadAllInt16(src Source, bufferSize int) ([]int16, error) {
	if bufferSize < src.Channels() {
		bufferSize = max(src.BufSize(), src.Channels())
	}
	bufferSize -= bufferSize % src.Channels()

	buf := make([]float32, bufferSize)
	pcm16 := make([]int16, 0, bufferSize)

	for {
		n, err := src.ReadSamples(buf)
		for _, v := range buf[:n] {
			pcm16 = append(pcm16, utils.Float32ToInt16(v))
		}

		if err == io.EOF {
			return pcm16, nil
		}
		if err != nil {
			return pcm16, fmt.Errorf("%w", err)
		}
	}
}
