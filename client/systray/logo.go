// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package systray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"

	ico "github.com/Kodeworks/golang-image-ico"
	"github.com/fogleman/gg"
)

// tsLogo is the Tailscale logo: a 3x3 grid of dots, some lit.
type tsLogo struct {
	name string

	// dots holds the 3x3 grid, row by row. 0 is a dim dot; anything
	// else is a lit dot.
	dots [9]byte

	// overlay, if non-nil, draws on top of the dots.
	overlay func(dc *gg.Context, borderUnits int, radius float64)
}

var (
	disconnected = tsLogo{
		name: "disconnected",
		dots: [9]byte{
			0, 0, 0,
			0, 0, 0,
			0, 0, 0,
		},
	}

	connected = tsLogo{
		name: "connected",
		dots: [9]byte{
			0, 0, 0,
			1, 1, 1,
			0, 1, 0,
		},
	}

	loading = tsLogo{
		name: "loading",
		dots: [9]byte{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		},
	}

	exitNodeOnline = tsLogo{
		name: "exit-node-online",
		dots: connected.dots,
		overlay: func(dc *gg.Context, borderUnits int, radius float64) {
			cx, cy, r := badge(dc, borderUnits, radius)
			// Arrow pointing up and to the right.
			dc.SetColor(fgColor())
			dc.SetLineWidth(r / 3)
			dc.SetLineCapRound()
			dc.DrawLine(cx-r/2, cy+r/2, cx+r/2, cy-r/2)
			dc.DrawLine(cx+r/2, cy-r/2, cx-r/6, cy-r/2)
			dc.DrawLine(cx+r/2, cy-r/2, cx+r/2, cy+r/6)
			dc.Stroke()
		},
	}

	exitNodeOffline = tsLogo{
		name: "exit-node-offline",
		dots: connected.dots,
		overlay: func(dc *gg.Context, borderUnits int, radius float64) {
			cx, cy, r := badge(dc, borderUnits, radius)
			dc.SetColor(color.RGBA{0xe5, 0x48, 0x4d, 0xff})
			dc.SetLineWidth(r / 3)
			dc.SetLineCapRound()
			dc.DrawLine(cx-r/2, cy-r/2, cx+r/2, cy+r/2)
			dc.DrawLine(cx-r/2, cy+r/2, cx+r/2, cy-r/2)
			dc.Stroke()
		},
	}
)

// badge clears a circle in the bottom-right corner of the logo for an
// overlay and returns its center and radius.
func badge(dc *gg.Context, borderUnits int, radius float64) (cx, cy, r float64) {
	cx = float64(borderUnits+7) * radius
	cy = cx
	r = radius * 1.6
	dc.DrawCircle(cx, cy, r)
	dc.SetColor(bgColor())
	dc.Fill()
	return cx, cy, r
}

func fgColor() color.Color {
	if darkMode() {
		return color.White
	}
	return color.NRGBA{0x14, 0x14, 0x14, 0xff}
}

func dimColor() color.Color {
	if darkMode() {
		return color.NRGBA{0xff, 0xff, 0xff, 0x66}
	}
	return color.NRGBA{0x14, 0x14, 0x14, 0x55}
}

func bgColor() color.Color {
	if darkMode() {
		return color.NRGBA{0x24, 0x24, 0x24, 0xff}
	}
	return color.NRGBA{0xf4, 0xf4, 0xf4, 0xff}
}

// render draws the logo with a border of borderUnits dot radii on each
// side.
func (logo tsLogo) render(borderUnits int) image.Image {
	const radius = 25
	dim := radius * (8 + borderUnits*2)

	dc := gg.NewContext(dim, dim)
	dc.DrawRectangle(0, 0, float64(dim), float64(dim))
	dc.SetColor(bgColor())
	dc.Fill()

	for y := range 3 {
		for x := range 3 {
			px := float64((borderUnits + 1 + 3*x) * radius)
			py := float64((borderUnits + 1 + 3*y) * radius)
			col := dimColor()
			if logo.dots[y*3+x] != 0 {
				col = fgColor()
			}
			dc.DrawCircle(px, py, radius)
			dc.SetColor(col)
			dc.Fill()
		}
	}
	if logo.overlay != nil {
		logo.overlay(dc, borderUnits, radius)
	}
	return dc.Image()
}

// renderWithBorder returns the logo as PNG.
func (logo tsLogo) renderWithBorder(borderUnits int) *bytes.Buffer {
	b := bytes.NewBuffer(nil)
	png.Encode(b, logo.render(borderUnits))
	return b
}

var (
	iconMu    sync.Mutex
	iconCache = map[string][]byte{} // logo name => encoded icon
)

// iconBytes returns the logo encoded for systray.SetIcon: ICO on
// Windows and PNG elsewhere.
func (logo tsLogo) iconBytes() []byte {
	iconMu.Lock()
	defer iconMu.Unlock()
	if b, ok := iconCache[logo.name]; ok {
		return b
	}
	var b []byte
	if runtime.GOOS == "windows" {
		buf := bytes.NewBuffer(nil)
		if err := ico.Encode(buf, logo.render(0)); err == nil {
			b = buf.Bytes()
		}
	}
	if b == nil {
		b = logo.renderWithBorder(0).Bytes()
	}
	iconCache[logo.name] = b
	return b
}
