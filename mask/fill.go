package mask

import "image"

// FillHoles turns enclosed background into foreground. Zero-valued samples that cannot be
// reached from the border through 4-connected zero samples become 255; every other sample is
// copied unchanged.
func FillHoles(src *image.Gray) *image.Gray {
	dst := cloneGray(src)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	if w == 0 || h == 0 {
		return dst
	}

	pix := dst.Pix
	stride := dst.Stride
	reached := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))

	push := func(x, y int) {
		i := y*w + x
		if reached[i] || pix[y*stride+x] != 0 {
			return
		}
		reached[i] = true
		queue = append(queue, i)
	}

	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}

	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(x-1, y)
		}
		if x+1 < w {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y+1 < h {
			push(x, y+1)
		}
	}

	for y := 0; y < h; y++ {
		row := pix[y*stride : y*stride+w]
		for x, v := range row {
			if v == 0 && !reached[y*w+x] {
				row[x] = 255
			}
		}
	}
	return dst
}
