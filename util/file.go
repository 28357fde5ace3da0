package util

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	nhttp "github.com/chaos-io/outline/util/http"
)

// IsURL reports whether path should be fetched over HTTP.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// LoadImage opens a local file or downloads an http(s) URL.
func LoadImage(ctx context.Context, path string) (image.Image, error) {
	if IsURL(path) {
		return DownloadImage(ctx, nhttp.NewHTTPClient(), path)
	}
	return OpenImage(path)
}

// DownloadImage fetches and decodes an image.
func DownloadImage(ctx context.Context, cli nhttp.IClient, url string) (image.Image, error) {
	var data []byte
	err := cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: url,
		Method:     http.MethodGet,
		Response:   &data,
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	return DecodeImage(bytes.NewReader(data))
}

// OpenImage opens a local image.
func OpenImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	img, err := DecodeImage(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes any registered image format.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// SavePNG writes img to path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// SaveText writes s to path, creating parent directories.
func SaveText(path, s string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(s), 0o644)
}

// VariantPath places "<stem>-<suffix>.<ext>" next to input.
// URLs resolve to the working directory.
func VariantPath(input, suffix, ext string) string {
	stem := stemOf(input)
	if stem == "" {
		return filepath.Join(dirOf(input), suffix+"."+ext)
	}
	return filepath.Join(dirOf(input), stem+"-"+suffix+"."+ext)
}

// SVGPath swaps the extension of input for ".svg".
func SVGPath(input string) string {
	stem := stemOf(input)
	if stem == "" {
		stem = "outline"
	}
	return filepath.Join(dirOf(input), stem+".svg")
}

func dirOf(input string) string {
	if IsURL(input) {
		return "."
	}
	return filepath.Dir(input)
}

func stemOf(input string) string {
	if IsURL(input) {
		input = strings.SplitN(input, "?", 2)[0]
	}
	base := filepath.Base(input)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
