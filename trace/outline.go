package trace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
)

// Outline is the built-in tracer. It follows pixel edges around the foreground and emits
// a single even-odd path, so its output is always the exact staircase outline regardless of Mode.
type Outline struct {
	// Fill is the path color. Empty means black.
	Fill string
}

var _ Vectorizer = Outline{}

const binarizeLevel = 128

// Trace implements Vectorizer.
func (o Outline) Trace(ctx context.Context, mask *image.Gray, cfg Config) (string, error) {
	if cfg.ColorMode == ColorColor {
		return "", &Error{Tracer: "outline", Err: errors.New("color mode is not supported, use vtracer")}
	}
	b := mask.Bounds()
	if b.Empty() {
		return "", &Error{Tracer: "outline", Err: errors.New("empty mask")}
	}

	fg := binarize(mask, cfg.Invert)
	w, h := b.Dx(), b.Dy()
	if cfg.FilterSpeckle > 1 {
		removeSpecks(fg, w, h, cfg.FilterSpeckle*cfg.FilterSpeckle)
	}
	if err := ctx.Err(); err != nil {
		return "", &Error{Tracer: "outline", Err: err}
	}

	loops := outlineLoops(fg, w, h)
	fill := o.Fill
	if fill == "" {
		fill = "#000000"
	}
	return renderSVG(w, h, loops, fill), nil
}

func binarize(mask *image.Gray, invert bool) []bool {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	fg := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x, v := range row {
			fg[y*w+x] = (v >= binarizeLevel) != invert
		}
	}
	return fg
}

// removeSpecks clears 4-connected foreground components smaller than minArea pixels.
func removeSpecks(fg []bool, w, h, minArea int) {
	seen := make([]bool, len(fg))
	var component, stack []int
	for start := range fg {
		if !fg[start] || seen[start] {
			continue
		}
		component = component[:0]
		stack = append(stack[:0], start)
		seen[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, i)
			x, y := i%w, i/w
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[1] < 0 || n[0] >= w || n[1] >= h {
					continue
				}
				j := n[1]*w + n[0]
				if fg[j] && !seen[j] {
					seen[j] = true
					stack = append(stack, j)
				}
			}
		}
		if len(component) < minArea {
			for _, i := range component {
				fg[i] = false
			}
		}
	}
}

// outlineLoops returns closed polygons along every foreground/background pixel edge.
// Edges are directed so the foreground lies on the right, making outer boundaries run
// clockwise on screen and holes counter-clockwise.
func outlineLoops(fg []bool, w, h int) [][]image.Point {
	stride := w + 1
	at := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && fg[y*w+x]
	}

	next := make(map[int][]int)
	var starts []int
	add := func(x0, y0, x1, y1 int) {
		from := y0*stride + x0
		if len(next[from]) == 0 {
			starts = append(starts, from)
		}
		next[from] = append(next[from], y1*stride+x1)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !fg[y*w+x] {
				continue
			}
			if !at(x, y-1) {
				add(x, y, x+1, y)
			}
			if !at(x+1, y) {
				add(x+1, y, x+1, y+1)
			}
			if !at(x, y+1) {
				add(x+1, y+1, x, y+1)
			}
			if !at(x-1, y) {
				add(x, y+1, x, y)
			}
		}
	}

	var loops [][]image.Point
	for _, start := range starts {
		for len(next[start]) > 0 {
			var pts []image.Point
			cur := start
			for {
				pts = append(pts, image.Pt(cur%stride, cur/stride))
				outs := next[cur]
				if len(outs) == 0 {
					break
				}
				to := outs[0]
				next[cur] = outs[1:]
				if to == start {
					break
				}
				cur = to
			}
			loops = append(loops, simplify(pts))
		}
	}
	return loops
}

// simplify drops vertices lying on a straight run of a closed polygon.
func simplify(pts []image.Point) []image.Point {
	n := len(pts)
	if n < 3 {
		return pts
	}
	out := make([]image.Point, 0, n)
	for i, p := range pts {
		prev := pts[(i+n-1)%n]
		nxt := pts[(i+1)%n]
		d1 := p.Sub(prev)
		d2 := nxt.Sub(p)
		if d1.X*d2.Y-d1.Y*d2.X == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

func renderSVG(w, h int, loops [][]image.Point, fill string) string {
	var buf bytes.Buffer
	_, _ = fmt.Fprintln(&buf, `<?xml version="1.0" encoding="UTF-8"?>`)
	_, _ = fmt.Fprintf(&buf, `<svg version="1.1" xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`+"\n", w, h)
	if len(loops) > 0 {
		_, _ = fmt.Fprint(&buf, `<path d="`)
		for i, loop := range loops {
			if i > 0 {
				buf.WriteByte(' ')
			}
			for j, p := range loop {
				cmd := "L"
				if j == 0 {
					cmd = "M"
				}
				_, _ = fmt.Fprintf(&buf, "%s%d,%d ", cmd, p.X, p.Y)
			}
			buf.WriteByte('Z')
		}
		_, _ = fmt.Fprintf(&buf, `" fill="%s" fill-rule="evenodd"/>`+"\n", fill)
	}
	_, _ = fmt.Fprintln(&buf, "</svg>")
	return buf.String()
}
