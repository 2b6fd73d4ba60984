package resources

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"

	"github.com/fogleman/gg"

	"github.com/rhuss/spielwerk/pkg/game"
)

// Per-style color palettes. The palette index layout is fixed: 0 player,
// 1 platform, 2 enemy, 3 item, 4 accent, 5 highlight, 6 UI background.
var colorPalettes = map[string][]string{
	"pixel art":  {"#FF6B35", "#F7931E", "#FFD23F", "#06FFA5", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7"},
	"cartoon":    {"#FF7675", "#74B9FF", "#00B894", "#FDCB6E", "#6C5CE7", "#FD79A8", "#55A3FF", "#A29BFE"},
	"modern":     {"#2D3436", "#636E72", "#B2BEC3", "#DDDDDD", "#74B9FF", "#00B894", "#FDCB6E", "#E17055"},
	"minimalist": {"#2C3E50", "#3498DB", "#E74C3C", "#F39C12", "#27AE60", "#9B59B6", "#1ABC9C", "#E67E22"},
}

// Palette returns the color palette for a visual style, falling back to the
// modern palette for unknown styles.
func Palette(visualStyle string) []string {
	if p, ok := colorPalettes[strings.ToLower(visualStyle)]; ok {
		return p
	}
	return colorPalettes["modern"]
}

// SynthesizeImages generates placeholder sprites and UI images for the
// game described by features. The returned strings are PNG data URIs.
func SynthesizeImages(gameType string, features *game.Features) ([]string, error) {
	if features == nil {
		features = &game.Features{}
	}
	colors := Palette(features.VisualStyle)
	pixel := strings.ToLower(features.VisualStyle) == "pixel art"

	var images []string
	add := func(uri string, err error) error {
		if err != nil {
			return err
		}
		images = append(images, uri)
		return nil
	}

	if slices.Contains(features.Elements, "player") {
		if err := add(sprite(32, 32, colors[0], "P", pixel)); err != nil {
			return nil, fmt.Errorf("player sprite: %w", err)
		}
	}
	if slices.Contains(features.Elements, "enemy") {
		if err := add(sprite(32, 32, colors[2], "E", pixel)); err != nil {
			return nil, fmt.Errorf("enemy sprite: %w", err)
		}
	}
	if slices.Contains(features.Elements, "item") {
		if err := add(sprite(16, 16, colors[3], "*", pixel)); err != nil {
			return nil, fmt.Errorf("item sprite: %w", err)
		}
	}
	if strings.Contains(strings.ToLower(gameType), "platform") {
		if err := add(platformSprite(colors, pixel)); err != nil {
			return nil, fmt.Errorf("platform sprite: %w", err)
		}
	}

	// UI elements are always generated.
	if err := add(button(colors[0], pixel)); err != nil {
		return nil, fmt.Errorf("button: %w", err)
	}
	if err := add(scoreboard(colors[6], pixel)); err != nil {
		return nil, fmt.Errorf("scoreboard: %w", err)
	}

	return images, nil
}

// sprite draws a square character sprite. Pixel style uses a checkerboard
// of filled cells with a hard border; other styles use an ellipse with a
// highlight.
func sprite(width, height int, color, label string, pixel bool) (string, error) {
	dc := gg.NewContext(width, height)

	if pixel {
		cell := max(1, min(width, height)/8)
		dc.SetHexColor(color)
		for x := 0; x < width; x += cell {
			for y := 0; y < height; y += cell {
				if (x+y)%(cell*2) == 0 {
					dc.DrawRectangle(float64(x), float64(y), float64(cell), float64(cell))
				}
			}
		}
		dc.Fill()

		dc.SetHexColor("#000000")
		dc.SetLineWidth(1)
		dc.DrawRectangle(0.5, 0.5, float64(width)-1, float64(height)-1)
		dc.Stroke()
	} else {
		const pad = 2
		dc.SetHexColor(color)
		dc.DrawEllipse(float64(width)/2, float64(height)/2,
			float64(width)/2-pad, float64(height)/2-pad)
		dc.Fill()

		// Highlight in the upper left quadrant.
		dc.SetRGBA(1, 1, 1, 0.5)
		dc.DrawEllipse(float64(width)/3, float64(height)/4,
			float64(width)/6, float64(height)/8)
		dc.Fill()
	}

	if label != "" {
		dc.SetHexColor("#FFFFFF")
		dc.DrawStringAnchored(label, float64(width)/2, float64(height)/2, 0.5, 0.5)
	}

	return encodePNG(dc)
}

func platformSprite(colors []string, pixel bool) (string, error) {
	const width, height = 64, 16
	dc := gg.NewContext(width, height)

	if pixel {
		dc.SetHexColor(colors[1])
		dc.DrawRectangle(0, 0, width, height)
		dc.Fill()

		dc.SetHexColor(colors[4])
		dc.SetLineWidth(1)
		for x := 0; x < width; x += 4 {
			dc.DrawLine(float64(x)+0.5, 0, float64(x)+0.5, height)
		}
		dc.DrawRectangle(0.5, 0.5, width-1, height-1)
		dc.Stroke()
	} else {
		dc.SetHexColor(colors[1])
		dc.DrawRoundedRectangle(0, 0, width, height, 4)
		dc.Fill()

		dc.SetRGBA(1, 1, 1, 0.15)
		dc.DrawRoundedRectangle(0, 0, width, height/2, 4)
		dc.Fill()
	}

	return encodePNG(dc)
}

func button(color string, pixel bool) (string, error) {
	const width, height = 80, 30
	dc := gg.NewContext(width, height)

	if pixel {
		dc.SetHexColor(color)
		dc.DrawRectangle(0, 0, width, height)
		dc.Fill()

		dc.SetHexColor("#FFFFFF")
		dc.SetLineWidth(1)
		dc.DrawRectangle(0.5, 0.5, width-1, height-1)
		dc.Stroke()
	} else {
		dc.SetHexColor(color)
		dc.DrawRoundedRectangle(0, 0, width, height, 6)
		dc.Fill()

		dc.SetRGBA(1, 1, 1, 0.2)
		dc.DrawRoundedRectangle(0, 0, width, height/3, 6)
		dc.Fill()
	}

	return encodePNG(dc)
}

func scoreboard(color string, pixel bool) (string, error) {
	const width, height = 120, 40
	dc := gg.NewContext(width, height)

	if pixel {
		dc.SetHexColor(color)
		dc.DrawRectangle(0, 0, width, height)
		dc.Fill()

		dc.SetHexColor("#000000")
		dc.SetLineWidth(1)
		dc.DrawRectangle(0.5, 0.5, width-1, height-1)
		dc.Stroke()
	} else {
		dc.SetHexColor(color)
		dc.DrawRoundedRectangle(0, 0, width, height, 8)
		dc.Fill()

		dc.SetHexColor("#FFFFFF")
		dc.SetLineWidth(1)
		dc.DrawRoundedRectangle(1, 1, width-2, height-2, 7)
		dc.Stroke()
	}

	return encodePNG(dc)
}

func encodePNG(dc *gg.Context) (string, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
