package resources

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math"
	"slices"
	"strings"

	"github.com/rhuss/spielwerk/pkg/game"
)

const sampleRate = 22050

// Base frequencies for the standard sound effects, in Hz.
const (
	freqJump    = 440 // A4
	freqCollect = 523 // C5
	freqHit     = 220 // A3
	freqMove    = 330 // E4
	freqFail    = 165 // E3
)

// successChord is an E major triad (E5, G5, B5).
var successChord = []float64{659, 784, 988}

// SynthesizeAudio generates placeholder sound effects for the game
// described by features. The returned strings are WAV data URIs. Which
// effects are generated depends on the game's elements and type; a success
// chord and a fail tone are always included.
func SynthesizeAudio(gameType string, features *game.Features) []string {
	if features == nil {
		features = &game.Features{}
	}

	var audio []string
	if slices.Contains(features.Elements, "item") {
		audio = append(audio, Tone(freqCollect, 0.2))
	}
	if slices.Contains(features.Elements, "player") {
		audio = append(audio, Tone(freqMove, 0.1))
	}
	if strings.Contains(strings.ToLower(gameType), "platform") {
		audio = append(audio, Tone(freqJump, 0.15))
		audio = append(audio, Tone(freqHit, 0.3))
	}

	audio = append(audio, Chord(successChord, 0.5))
	audio = append(audio, Tone(freqFail, 0.8))
	return audio
}

// Tone synthesizes a single sine tone with a short fade envelope and
// returns it as a WAV data URI.
func Tone(frequency float64, duration float64) string {
	return Chord([]float64{frequency}, duration)
}

// Chord synthesizes the sum of multiple sine tones with a short fade
// envelope and returns it as a WAV data URI.
func Chord(frequencies []float64, duration float64) string {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)

	fade := sampleRate / 100 // 10ms fade in/out
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		var v float64
		for _, f := range frequencies {
			v += math.Sin(2 * math.Pi * f * t)
		}
		v /= float64(len(frequencies))

		envelope := 1.0
		if i < fade {
			envelope = float64(i) / float64(fade)
		} else if i >= n-fade {
			envelope = float64(n-i-1) / float64(fade)
		}

		samples[i] = int16(v * envelope * 0.3 * 32767)
	}

	return "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(encodeWAV(samples))
}

// encodeWAV wraps 16-bit mono PCM samples in a RIFF/WAVE container.
func encodeWAV(samples []int16) []byte {
	const (
		channels    = 1
		sampleWidth = 2
	)
	dataSize := len(samples) * sampleWidth

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*sampleWidth))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*sampleWidth))
	binary.Write(&buf, binary.LittleEndian, uint16(sampleWidth*8))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}
