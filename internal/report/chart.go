package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/pavelanni/careercompass/internal/model"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	chartWidth  = 640
	chartHeight = 420
	pieRadius   = 150
)

var (
	background = color.NRGBA{0xF0, 0xFA, 0xF5, 0xFF}
	palette    = []color.NRGBA{
		{0x00, 0x88, 0xFE, 0xFF},
		{0x00, 0xC4, 0x9F, 0xFF},
		{0xFF, 0xBB, 0x28, 0xFF},
		{0xFF, 0x80, 0x42, 0xFF},
	}
)

var (
	faceOnce sync.Once
	face     font.Face
	faceErr  error
)

func labelFace() (font.Face, error) {
	faceOnce.Do(func() {
		parsed, err := truetype.Parse(goregular.TTF)
		if err != nil {
			faceErr = fmt.Errorf("parse TTF: %w", err)
			return
		}
		face = truetype.NewFace(parsed, &truetype.Options{
			Size:    16,
			DPI:     72,
			Hinting: font.HintingNone,
		})
	})
	return face, faceErr
}

// Chart renders the aptitude scores as a PNG pie chart with a legend.
// Slices are proportional to the scores; all-zero scores draw an empty ring.
func Chart(r model.DetailedReport) ([]byte, error) {
	ff, err := labelFace()
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(background)
	dc.Clear()

	cx, cy := float64(chartHeight)/2, float64(chartHeight)/2
	total := 0
	for _, s := range r.AptitudeScores {
		total += s.Score
	}

	if total == 0 {
		dc.SetColor(color.NRGBA{0xCC, 0xCC, 0xCC, 0xFF})
		dc.SetLineWidth(2)
		dc.DrawCircle(cx, cy, pieRadius)
		dc.Stroke()
	} else {
		angle := -math.Pi / 2
		for i, s := range r.AptitudeScores {
			sweep := 2 * math.Pi * float64(s.Score) / float64(total)
			dc.MoveTo(cx, cy)
			dc.DrawArc(cx, cy, pieRadius, angle, angle+sweep)
			dc.ClosePath()
			dc.SetColor(palette[i%len(palette)])
			dc.Fill()
			angle += sweep
		}
	}

	dc.SetFontFace(ff)
	lx := float64(chartHeight) + 10
	ly := cy - float64(len(r.AptitudeScores))*30/2
	for i, s := range r.AptitudeScores {
		y := ly + float64(i)*30
		dc.SetColor(palette[i%len(palette)])
		dc.DrawRectangle(lx, y, 16, 16)
		dc.Fill()
		dc.SetColor(color.NRGBA{0x33, 0x33, 0x33, 0xFF})
		dc.DrawStringAnchored(fmt.Sprintf("%s: %d", s.Name, s.Score), lx+24, y+8, 0, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
