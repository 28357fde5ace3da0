package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chaos-io/outline/config"
	"github.com/chaos-io/outline/mask"
	"github.com/chaos-io/outline/rembg"
	"github.com/chaos-io/outline/session"
	"github.com/chaos-io/outline/trace"
)

// squareMatter marks a centered square as foreground.
type squareMatter struct {
	empty bool
	err   error
}

func (m squareMatter) Matte(_ context.Context, img image.Image) (*mask.Matte, error) {
	if m.err != nil {
		return nil, m.err
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if !m.empty {
		for y := b.Dy() / 4; y < b.Dy()*3/4; y++ {
			for x := b.Dx() / 4; x < b.Dx()*3/4; x++ {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return mask.NewMatte(out)
}

func newTestServer(t *testing.T, matter rembg.Matter, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode
	cfg.Server.OutputDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	logger := zaptest.NewLogger(t)
	runner := session.NewRunner(matter, cfg.MaskDefaults(), logger)
	srv, err := New(&cfg, runner, trace.Outline{}, logger)
	require.NoError(t, err)
	return srv
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 50, 25, 255
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func buildMultipartBody(t *testing.T, payload []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if payload != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="image"; filename="upload.png"`)
		header.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(payload)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func post(t *testing.T, srv *Server, path string, payload []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := buildMultipartBody(t, payload, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)
	return resp
}

func decodeResult(t *testing.T, resp *httptest.ResponseRecorder) ResultResponse {
	t.Helper()

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var out ResultResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.True(t, out.Success)
	return out
}

func download(t *testing.T, srv *Server, url string) []byte {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	return resp.Body.Bytes()
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, squareMatter{}, nil)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestMask_RawMatteByDefault(t *testing.T) {
	srv := newTestServer(t, squareMatter{}, nil)

	out := decodeResult(t, post(t, srv, "/api/v1/mask", testPNG(t, 8, 8), nil))
	assert.Equal(t, map[string]string{"mask": "raw"}, out.Selections)
	require.Contains(t, out.Files, "matte")
	assert.Equal(t, "/api/v1/results/"+out.ID+"/matte.png", out.Files["matte"])

	img, err := png.Decode(bytes.NewReader(download(t, srv, out.Files["matte"])))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
}

func TestMask_ProcessedWhenDilating(t *testing.T) {
	srv := newTestServer(t, squareMatter{}, nil)

	out := decodeResult(t, post(t, srv, "/api/v1/mask", testPNG(t, 8, 8), map[string]string{
		"dilate": "1",
	}))
	assert.Equal(t, "processed", out.Selections["mask"])
	assert.Contains(t, out.Files, "mask")

	forced := decodeResult(t, post(t, srv, "/api/v1/mask", testPNG(t, 8, 8), map[string]string{
		"dilate":      "1",
		"mask_source": "raw",
	}))
	assert.Equal(t, "raw", forced.Selections["mask"])
}

func TestCut(t *testing.T) {
	srv := newTestServer(t, squareMatter{}, nil)

	out := decodeResult(t, post(t, srv, "/api/v1/cut", testPNG(t, 8, 8), map[string]string{
		"trim":         "true",
		"trim_margin":  "1",
		"export_matte": "",
		"export_mask":  "true",
	}))
	assert.Equal(t, "raw", out.Selections["alpha"])
	assert.Contains(t, out.Files, "matte")
	assert.Contains(t, out.Files, "mask")

	img, err := png.Decode(bytes.NewReader(download(t, srv, out.Files["foreground"])))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 6), img.Bounds())
	_, _, _, a := img.At(3, 3).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	_, _, _, a = img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), a)
}

func TestCut_EmptySubject(t *testing.T) {
	srv := newTestServer(t, squareMatter{empty: true}, nil)

	resp := post(t, srv, "/api/v1/cut", testPNG(t, 8, 8), map[string]string{"trim": "true"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestTrace(t *testing.T) {
	srv := newTestServer(t, squareMatter{}, nil)

	out := decodeResult(t, post(t, srv, "/api/v1/trace", testPNG(t, 8, 8), map[string]string{
		"mode":           "polygon",
		"filter_speckle": "0",
	}))
	assert.Equal(t, "raw", out.Selections["mask"])
	assert.Equal(t, "/api/v1/results/"+out.ID+"/outline.svg", out.Files["outline"])

	svg := string(download(t, srv, out.Files["outline"]))
	assert.Contains(t, svg, "<svg")
	assert.Contains(t, svg, "M2,2 L6,2 L6,6 L2,6 Z")
}

func TestCompose(t *testing.T) {
	srv := newTestServer(t, squareMatter{}, nil)

	out := decodeResult(t, post(t, srv, "/api/v1/compose", testPNG(t, 8, 8), map[string]string{
		"dilate":         "1",
		"fg_mask_source": "raw",
		"bg_color":       "#00ff00",
		"export_layers":  "true",
	}))
	assert.Equal(t, "raw", out.Selections["foreground"])
	assert.Equal(t, "processed", out.Selections["background"])
	assert.Len(t, out.Files, 3)

	img, err := png.Decode(bytes.NewReader(download(t, srv, out.Files["composite"])))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 200, G: 50, B: 25, A: 255}, color.NRGBAModel.Convert(img.At(4, 4)))
	// the dilated ring around the raw cut-out shows the background
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, color.NRGBAModel.Convert(img.At(1, 4)))
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), a)
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t, squareMatter{}, nil)
	png8 := testPNG(t, 8, 8)

	tests := []struct {
		name    string
		path    string
		payload []byte
		fields  map[string]string
	}{
		{name: "missing image", path: "/api/v1/mask"},
		{name: "not an image", path: "/api/v1/mask", payload: []byte("hello")},
		{name: "blur not a number", path: "/api/v1/mask", payload: png8, fields: map[string]string{"blur": "abc"}},
		{name: "blur sigma zero", path: "/api/v1/mask", payload: png8, fields: map[string]string{"blur": "0"}},
		{name: "negative dilate", path: "/api/v1/mask", payload: png8, fields: map[string]string{"dilate": "-1"}},
		{name: "threshold out of range", path: "/api/v1/mask", payload: png8, fields: map[string]string{"mask_threshold": "300"}},
		{name: "unknown binary", path: "/api/v1/mask", payload: png8, fields: map[string]string{"binary": "maybe"}},
		{name: "unknown source", path: "/api/v1/mask", payload: png8, fields: map[string]string{"mask_source": "best"}},
		{name: "unknown trace mode", path: "/api/v1/trace", payload: png8, fields: map[string]string{"mode": "bezier"}},
		{name: "bad color", path: "/api/v1/compose", payload: png8, fields: map[string]string{"bg_color": "green"}},
		{name: "bad alpha mode", path: "/api/v1/compose", payload: png8, fields: map[string]string{"bg_alpha_mode": "fade"}},
		{name: "solid alpha out of range", path: "/api/v1/compose", payload: png8, fields: map[string]string{"bg_alpha_mode": "solid", "bg_solid_alpha": "256"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, tt.path, tt.payload, tt.fields)
			assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

			var out ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
			assert.False(t, out.Success)
			assert.NotEmpty(t, out.Error)
		})
	}
}

func TestInferenceFailure(t *testing.T) {
	srv := newTestServer(t, squareMatter{err: &rembg.InferenceError{Stage: "request", Err: errors.New("connection refused")}}, nil)

	resp := post(t, srv, "/api/v1/mask", testPNG(t, 4, 4), nil)
	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Contains(t, resp.Body.String(), "connection refused")

	entries, err := os.ReadDir(srv.cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQueueFull(t *testing.T) {
	srv := newTestServer(t, squareMatter{}, func(cfg *config.Config) {
		cfg.Server.MaxConcurrent = 1
		cfg.Server.QueueTimeoutSeconds = 0
	})
	srv.semaphore <- struct{}{}

	resp := post(t, srv, "/api/v1/mask", testPNG(t, 4, 4), nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	<-srv.semaphore
	resp = post(t, srv, "/api/v1/mask", testPNG(t, 4, 4), nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestUploadTooLarge(t *testing.T) {
	srv := newTestServer(t, squareMatter{}, func(cfg *config.Config) {
		cfg.Server.MaxUploadMB = 1
	})

	resp := post(t, srv, "/api/v1/mask", bytes.Repeat([]byte("a"), 2<<20), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

func TestResultNotFound(t *testing.T) {
	srv := newTestServer(t, squareMatter{}, nil)
	out := decodeResult(t, post(t, srv, "/api/v1/mask", testPNG(t, 4, 4), nil))

	for _, url := range []string{
		"/api/v1/results/not-a-ksuid/matte.png",
		"/api/v1/results/" + ksuid.New().String() + "/matte.png",
		"/api/v1/results/" + out.ID + "/mask.png",
		"/api/v1/results/" + out.ID + "/matte.txt",
		"/api/v1/results/" + out.ID + "/..%2fmatte.png",
	} {
		resp := httptest.NewRecorder()
		srv.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusNotFound, resp.Code, url)
	}
}

func TestStore_Prune(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now.Add(-48 * time.Hour) }
	old, err := store.Create()
	require.NoError(t, err)
	require.NoError(t, old.SaveSVG("outline", "<svg/>"))

	store.now = func() time.Time { return now }
	fresh, err := store.Create()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "not-an-id"), 0o755))

	removed, err := store.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.Join(dir, old.ID.String()))
	assert.True(t, os.IsNotExist(err))
	for _, name := range []string{fresh.ID.String(), "notes.txt", "not-an-id"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestStore_Path(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	res, err := store.Create()
	require.NoError(t, err)
	require.NoError(t, res.SaveSVG("outline", "<svg/>"))
	assert.Equal(t, map[string]string{"outline": "outline.svg"}, res.Files)

	path, err := store.Path(res.ID.String(), "outline.svg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, filepath.Join(res.ID.String(), "outline.svg")))

	_, err = store.Path(res.ID.String(), "../outline.svg")
	assert.ErrorIs(t, err, ErrResultNotFound)

	require.NoError(t, res.Discard())
	_, err = store.Path(res.ID.String(), "outline.svg")
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusBadRequest, statusFor(badRequest(errors.New("x"))))
	assert.Equal(t, http.StatusBadRequest, statusFor(mask.ErrInvalidParameter))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(ErrQueueFull))
	assert.Equal(t, http.StatusNotFound, statusFor(ErrResultNotFound))
	assert.Equal(t, http.StatusBadGateway, statusFor(&rembg.InferenceError{Stage: "decode", Err: errors.New("x")}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(&http.MaxBytesError{Limit: 1}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&trace.Error{Tracer: "vtracer", Err: errors.New("x")}))
}
