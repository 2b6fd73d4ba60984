package resources

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"image/png"
	"strings"
	"testing"

	"github.com/rhuss/spielwerk/pkg/game"
)

func decodeDataURI(t *testing.T, uri, wantPrefix string) []byte {
	t.Helper()
	if !strings.HasPrefix(uri, wantPrefix) {
		t.Fatalf("uri prefix = %q, want %q", uri[:min(len(uri), 40)], wantPrefix)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, wantPrefix))
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	return data
}

func TestSynthesizeImages(t *testing.T) {
	features := &game.Features{
		VisualStyle: "pixel art",
		Elements:    []string{"player", "enemy", "item"},
	}
	images, err := SynthesizeImages("platformer", features)
	if err != nil {
		t.Fatalf("SynthesizeImages: %v", err)
	}
	// player, enemy, item, platform, button, scoreboard
	if len(images) != 6 {
		t.Fatalf("images = %d, want 6", len(images))
	}
	for i, uri := range images {
		data := decodeDataURI(t, uri, "data:image/png;base64,")
		if _, err := png.Decode(bytes.NewReader(data)); err != nil {
			t.Errorf("image %d: not valid PNG: %v", i, err)
		}
	}
}

func TestSynthesizeImagesMinimal(t *testing.T) {
	images, err := SynthesizeImages("puzzle", &game.Features{VisualStyle: "modern"})
	if err != nil {
		t.Fatalf("SynthesizeImages: %v", err)
	}
	// Only the always-on UI elements.
	if len(images) != 2 {
		t.Errorf("images = %d, want 2", len(images))
	}
}

func TestSynthesizeImagesNilFeatures(t *testing.T) {
	images, err := SynthesizeImages("arcade", nil)
	if err != nil {
		t.Fatalf("SynthesizeImages: %v", err)
	}
	if len(images) == 0 {
		t.Error("expected UI images even without features")
	}
}

func TestPaletteFallback(t *testing.T) {
	if p := Palette("vaporwave dreamscape"); p[0] != colorPalettes["modern"][0] {
		t.Errorf("unknown style palette = %v", p)
	}
	if p := Palette("Pixel Art"); p[0] != colorPalettes["pixel art"][0] {
		t.Error("style lookup should be case insensitive")
	}
}

func TestSynthesizeAudio(t *testing.T) {
	features := &game.Features{Elements: []string{"player", "item"}}
	audio := SynthesizeAudio("platform jumper", features)
	// collect, move, jump, hit, success, fail
	if len(audio) != 6 {
		t.Fatalf("audio = %d, want 6", len(audio))
	}
	for i, uri := range audio {
		data := decodeDataURI(t, uri, "data:audio/wav;base64,")
		if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
			t.Errorf("audio %d: not a WAV container", i)
		}
	}
}

func TestSynthesizeAudioAlwaysHasOutcomeSounds(t *testing.T) {
	audio := SynthesizeAudio("quiz", &game.Features{})
	if len(audio) != 2 {
		t.Errorf("audio = %d, want success and fail only", len(audio))
	}
}

func TestToneWAVLayout(t *testing.T) {
	data := decodeDataURI(t, Tone(440, 0.1), "data:audio/wav;base64,")

	// 0.1s at 22050 Hz, 16-bit mono.
	wantSamples := uint32(2205 * 2)
	dataSize := binary.LittleEndian.Uint32(data[40:44])
	if dataSize != wantSamples {
		t.Errorf("data size = %d, want %d", dataSize, wantSamples)
	}
	rate := binary.LittleEndian.Uint32(data[24:28])
	if rate != sampleRate {
		t.Errorf("sample rate = %d", rate)
	}

	// Envelope: first sample is silent, mid-tone is not.
	first := int16(binary.LittleEndian.Uint16(data[44:46]))
	if first != 0 {
		t.Errorf("first sample = %d, want 0", first)
	}
	var peak int16
	for i := 44; i+1 < len(data); i += 2 {
		s := int16(binary.LittleEndian.Uint16(data[i : i+2]))
		if s > peak {
			peak = s
		}
	}
	if peak < 5000 {
		t.Errorf("peak = %d, tone seems silent", peak)
	}
}
