package main

import (
	"fmt"
	"image/color"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/oolong-gc/oolong"
)

type pageSnap struct {
	id       oolong.PageID
	typ      oolong.PageType
	size     uint64
	top      uint64
	live     uint64
	marked   bool
	selected bool
}

type heapSnap struct {
	phase     string
	gcPhase   oolong.Phase
	view      oolong.View
	used      uint64
	capacity  uint64
	max       uint64
	reclaimed uint64
	pages     []pageSnap
}

func snapshot(h *oolong.Heap, phase string) *heapSnap {
	s := &heapSnap{
		phase:     phase,
		gcPhase:   h.Phase(),
		view:      h.View(),
		used:      h.Used(),
		capacity:  h.Capacity(),
		max:       h.MaxCapacity(),
		reclaimed: h.Reclaimed(),
	}
	selected := make(map[oolong.PageID]bool)
	h.RelocationSetDo(func(p *oolong.Page) bool {
		selected[p.ID()] = true
		return true
	})
	h.PagesDo(func(p *oolong.Page) bool {
		_, live := h.PageLive(p)
		s.pages = append(s.pages, pageSnap{
			id:       p.ID(),
			typ:      p.Type(),
			size:     p.Size(),
			top:      p.Top(),
			live:     live,
			marked:   live > 0,
			selected: selected[p.ID()],
		})
		return true
	})
	return s
}

var typeColors = map[oolong.PageType]color.RGBA{
	oolong.PageTypeSmall:  {R: 0x4c, G: 0xaf, B: 0x50, A: 0xff},
	oolong.PageTypeMedium: {R: 0x21, G: 0x96, B: 0xf3, A: 0xff},
	oolong.PageTypeLarge:  {R: 0x9c, G: 0x27, B: 0xb0, A: 0xff},
}

// Draw renders one frame: a header with phase and capacity gauges on
// the left, the page grid on the right.
func Draw(s *heapSnap) *gg.Context {
	c := gg.NewContext(1920, 1080)

	c.SetRGB(1, 1, 1)
	c.DrawRectangle(0, 0, 1920, 1080)
	c.Fill()

	split := c.Width() / 4
	const padding = 32

	c.SetColor(color.Black)
	must(setFontFace(c, *fontPath, 36))
	c.DrawStringAnchored("oolong", padding, 64, 0, 0)
	must(setFontFace(c, *fontPath, 28))
	c.DrawStringAnchored(s.phase, padding, 112, 0, 0)
	c.DrawStringAnchored(fmt.Sprintf("phase %s, view %s", s.gcPhase, s.view), padding, 152, 0, 0)

	drawGauge(c, padding, 220, float64(split)-2*padding, "used", s.used, s.max)
	drawGauge(c, padding, 300, float64(split)-2*padding, "capacity", s.capacity, s.max)
	drawGauge(c, padding, 380, float64(split)-2*padding, "reclaimed", s.reclaimed, s.max)

	drawPageGrid(c, split, s)
	return c
}

func drawGauge(c *gg.Context, x, y, width float64, label string, value, limit uint64) {
	const height = 28
	must(setFontFace(c, *fontPath, 24))
	c.SetColor(color.Black)
	c.DrawStringAnchored(fmt.Sprintf("%s %dK", label, value/1024), x, y-10, 0, 0)
	c.SetLineWidth(2.0)
	c.DrawRectangle(x, y, width, height)
	c.Stroke()
	if limit > 0 {
		c.SetColor(color.Gray{Y: 80})
		c.DrawRectangle(x, y, width*float64(value)/float64(limit), height)
		c.Fill()
	}
}

func drawPageGrid(c *gg.Context, split int, s *heapSnap) {
	const (
		padding    = 24
		pageWidth  = 200.0
		pageHeight = 96.0
	)
	faded := color.Gray{Y: 153}
	highlight := color.RGBA{R: 0xff, A: 0xff}

	cols := (c.Width() - split - padding) / (pageWidth + padding)
	if cols < 1 {
		cols = 1
	}

	must(setFontFace(c, *fontPath, 20))
	for i, p := range s.pages {
		col := i % cols
		row := i / cols
		x := float64(split+padding) + float64(col)*(pageWidth+padding)
		y := float64(padding+40) + float64(row)*(pageHeight+padding+24)

		// Allocated extent.
		fill := pageWidth * float64(p.top) / float64(p.size)
		tc := typeColors[p.typ]
		c.SetColor(color.RGBA{R: tc.R, G: tc.G, B: tc.B, A: 0x50})
		c.DrawRectangle(x, y, fill, pageHeight)
		c.Fill()

		// Live extent.
		c.SetColor(tc)
		c.DrawRectangle(x, y+pageHeight*0.6, pageWidth*float64(p.live)/float64(p.size), pageHeight*0.4)
		c.Fill()

		// Boundary: highlighted if in the relocation set, faded when
		// nothing is marked.
		switch {
		case p.selected:
			c.SetColor(highlight)
			c.SetDash(6.0)
		case p.marked:
			c.SetColor(color.Black)
			c.SetDash()
		default:
			c.SetColor(faded)
			c.SetDash()
		}
		c.SetLineWidth(3.0)
		c.DrawRoundedRectangle(x, y, pageWidth, pageHeight, 10.0)
		c.Stroke()
		c.SetDash()

		c.SetColor(color.Black)
		c.DrawStringAnchored(fmt.Sprintf("p%d %s", p.id, p.typ), x, y-8, 0, 0)
	}
}

type fontFaceKey struct {
	path string
	size float64
}

var fontCache = make(map[string]*truetype.Font)
var faceCache = make(map[fontFaceKey]font.Face)

func setFontFace(c *gg.Context, path string, size float64) error {
	if f, ok := faceCache[fontFaceKey{path, size}]; ok {
		c.SetFontFace(f)
		return nil
	}
	ft, ok := fontCache[path]
	if !ok {
		fontBytes, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ft, err = truetype.Parse(fontBytes)
		if err != nil {
			return err
		}
		fontCache[path] = ft
	}
	f := truetype.NewFace(ft, &truetype.Options{Size: size})
	faceCache[fontFaceKey{path, size}] = f
	c.SetFontFace(f)
	return nil
}
