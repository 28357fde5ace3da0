package mask

import (
	"fmt"
	"image"
	"math"
)

// Pipeline accumulates processing steps over one matte and applies them on demand.
// A pipeline has a single owner and is not safe for concurrent mutation.
type Pipeline struct {
	matte    *Matte
	defaults Defaults
	opts     Options

	cached     *Mask
	cachedOpts Options
	// computations counts real applications, cache hits excluded.
	computations int
}

// NewPipeline starts an empty pipeline over m.
func NewPipeline(m *Matte, defaults Defaults) (*Pipeline, error) {
	if m == nil || m.img == nil {
		return nil, fmt.Errorf("%w: nil matte", ErrInvalidParameter)
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{matte: m, defaults: defaults}, nil
}

// Raw returns the matte the pipeline reads from.
func (p *Pipeline) Raw() *Matte {
	return p.matte
}

// Options returns the currently recorded steps.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Defaults returns the defaults owned by this pipeline.
func (p *Pipeline) Defaults() Defaults {
	return p.defaults
}

// Resolve applies the shared source rule to this pipeline's options.
func (p *Pipeline) Resolve(source Source) Selection {
	return Resolve(source, p.opts, p.defaults)
}

// BlurWith records a gaussian blur. A later call replaces the sigma.
func (p *Pipeline) BlurWith(sigma float64) error {
	if err := checkSigma(sigma); err != nil {
		return err
	}
	p.opts.Blur = BlurStep{Enabled: true, Sigma: sigma}
	return nil
}

// Blur records a gaussian blur with the default sigma.
func (p *Pipeline) Blur() error {
	return p.BlurWith(p.defaults.BlurSigma)
}

// ThresholdWith records binarization at an integer level in [0, 255].
func (p *Pipeline) ThresholdWith(value int) error {
	if value < 0 || value > 255 {
		return paramError("threshold", value, "expected 0-255")
	}
	p.opts.Threshold = ThresholdStep{Enabled: true, Value: uint8(value)}
	return nil
}

// ThresholdFractionWith records binarization at a normalized level in [0.0, 1.0],
// rescaled to round(v*255).
func (p *Pipeline) ThresholdFractionWith(value float64) error {
	level, err := fractionToLevel(value)
	if err != nil {
		return err
	}
	p.opts.Threshold = ThresholdStep{Enabled: true, Value: level}
	return nil
}

// Threshold records binarization at the default level.
func (p *Pipeline) Threshold() error {
	return p.ThresholdWith(int(p.defaults.Threshold))
}

// DilateWith records dilation with a circular element. Radius 0 is accepted and changes nothing.
func (p *Pipeline) DilateWith(radius float64) error {
	if err := checkRadius(radius); err != nil {
		return err
	}
	p.opts.Dilate = DilateStep{Enabled: true, Radius: radius}
	return nil
}

// Dilate records dilation with the default radius.
func (p *Pipeline) Dilate() error {
	return p.DilateWith(p.defaults.DilateRadius)
}

// FillHoles records hole filling.
func (p *Pipeline) FillHoles() {
	p.opts.FillHoles = true
}

// Apply replaces every recorded step with opts after validating it.
func (p *Pipeline) Apply(opts Options) error {
	if opts.Blur.Enabled {
		if err := checkSigma(opts.Blur.Sigma); err != nil {
			return err
		}
	}
	if opts.Dilate.Enabled {
		if err := checkRadius(opts.Dilate.Radius); err != nil {
			return err
		}
	}
	p.opts = opts
	return nil
}

// Processed applies the enabled steps in the order blur, threshold, dilate, fill-holes.
// The result is cached until the recorded options change.
func (p *Pipeline) Processed() (*Mask, error) {
	if p.cached != nil && p.cachedOpts == p.opts {
		return p.cached, nil
	}

	opts := p.opts
	current := p.matte.img
	if opts.Blur.Enabled {
		current = GaussianBlur(current, opts.Blur.Sigma)
	}
	if opts.Threshold.Enabled {
		current = Threshold(current, opts.Threshold.Value)
	}
	if opts.Dilate.Enabled {
		current = Dilate(current, opts.Dilate.Radius)
	}
	if opts.FillHoles {
		current = FillHoles(current)
	}
	if current == p.matte.img {
		current = cloneGray(current)
	}
	if current.Bounds() != p.matte.Bounds() {
		return nil, fmt.Errorf("processed mask %v does not match matte %v", current.Bounds(), p.matte.Bounds())
	}

	p.cached = &Mask{img: current, binary: opts.Threshold.Enabled}
	p.cachedOpts = opts
	p.computations++
	return p.cached, nil
}

// Selected returns the mask chosen by Resolve(source): the raw matte or the processed mask.
func (p *Pipeline) Selected(source Source) (*image.Gray, Selection, error) {
	sel := p.Resolve(source)
	if sel == SelectRaw {
		return p.matte.Image(), sel, nil
	}
	m, err := p.Processed()
	if err != nil {
		return nil, sel, err
	}
	return m.Image(), sel, nil
}

func checkSigma(sigma float64) error {
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= 0 {
		return paramError("blur sigma", sigma, "must be a finite value greater than 0")
	}
	return nil
}

func checkRadius(radius float64) error {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return paramError("dilation radius", radius, "must be a finite value of at least 0")
	}
	return nil
}
