package rembg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/chaos-io/outline/mask"
	nhttp "github.com/chaos-io/outline/util/http"
)

// DefaultInputSize is the square model resolution used when none is configured.
const DefaultInputSize = 320

// Remote sends images to a matting service. The service receives a multipart form with the
// resized image in field "image" and answers either with a grayscale image or with JSON
// {"width": W, "height": H, "matte": [...]} holding normalized samples.
type Remote struct {
	Endpoint     string
	InputSize    int
	InputFilter  Filter
	OutputFilter Filter
	Timeout      time.Duration

	cli    nhttp.IClient
	logger *zap.Logger
}

var _ Matter = (*Remote)(nil)

// RemoteOption configures a Remote.
type RemoteOption func(*Remote)

// WithClient replaces the HTTP client.
func WithClient(cli nhttp.IClient) RemoteOption {
	return func(r *Remote) {
		if cli != nil {
			r.cli = cli
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) RemoteOption {
	return func(r *Remote) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRemote builds a Remote with the triangle/lanczos3 filter pair and a 320px model input.
func NewRemote(endpoint string, opts ...RemoteOption) *Remote {
	r := &Remote{
		Endpoint:     endpoint,
		InputSize:    DefaultInputSize,
		InputFilter:  FilterTriangle,
		OutputFilter: FilterLanczos3,
		cli:          nhttp.NewHTTPClient(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type matteResp struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Matte  []float32 `json:"matte"`
}

// Matte implements Matter.
func (r *Remote) Matte(ctx context.Context, img image.Image) (*mask.Matte, error) {
	if r.Endpoint == "" {
		return nil, inferenceError("configure", errors.New("no matting endpoint configured, set --endpoint or OUTLINE_ENDPOINT"))
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, inferenceError("prepare", errors.New("empty image"))
	}
	size := r.InputSize
	if size <= 0 {
		size = DefaultInputSize
	}

	input := image.NewNRGBA(image.Rect(0, 0, size, size))
	r.InputFilter.Interpolator().Scale(input, input.Bounds(), img, b, draw.Src, nil)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "input.png")
	if err != nil {
		return nil, inferenceError("encode", fmt.Errorf("create form file: %w", err))
	}
	if err := png.Encode(part, input); err != nil {
		return nil, inferenceError("encode", err)
	}
	_ = writer.Close()

	var raw []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.Endpoint,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &raw,
		Timeout:    r.Timeout,
	}
	start := time.Now()
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, inferenceError("request", err)
	}
	r.logger.Debug("matte received",
		zap.String("endpoint", r.Endpoint),
		zap.Int("input_size", size),
		zap.Int("bytes", len(raw)),
		zap.Duration("cost", time.Since(start)))

	matte, err := decodeMatte(raw)
	if err != nil {
		return nil, inferenceError("decode", err)
	}

	out := fitGray(matte, b.Size(), r.OutputFilter)
	m, err := mask.NewMatte(out)
	if err != nil {
		return nil, inferenceError("decode", err)
	}
	return m, nil
}

func decodeMatte(raw []byte) (image.Image, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var resp matteResp
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return nil, fmt.Errorf("matte json: %w", err)
		}
		m, err := mask.MatteFromFloats(resp.Width, resp.Height, resp.Matte)
		if err != nil {
			return nil, err
		}
		return m.Image(), nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("matte image: %w", err)
	}
	return img, nil
}
