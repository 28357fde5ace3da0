package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/outline/config"
	"github.com/chaos-io/outline/session"
	"github.com/chaos-io/outline/util"
)

type cliTestEnv struct {
	dir        string
	configPath string
	input      string
	matte      string
}

// setupCLITestEnv writes an 8x8 opaque image and a matte marking its centered 4x4 square.
func setupCLITestEnv(t *testing.T) cliTestEnv {
	t.Helper()

	dir := t.TempDir()
	env := cliTestEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "outline.toml"),
		input:      filepath.Join(dir, "photo.png"),
		matte:      filepath.Join(dir, "photo-alpha.png"),
	}
	require.NoError(t, config.CreateSample(env.configPath))

	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 50, 25, 255
	}
	require.NoError(t, util.SavePNG(env.input, img))

	matte := image.NewGray(image.Rect(0, 0, 8, 8))
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			matte.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	require.NoError(t, util.SavePNG(env.matte, matte))
	return env
}

func runCLI(t *testing.T, env cliTestEnv, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	full := append([]string{"--config", env.configPath, "--log-level", "error", "--matte", env.matte}, args...)
	cmd.SetArgs(full)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func openGray(t *testing.T, path string) *image.Gray {
	t.Helper()

	img, err := util.OpenImage(path)
	require.NoError(t, err)
	g, ok := img.(*image.Gray)
	require.True(t, ok, "expected a grayscale PNG at %s", path)
	return g
}

func TestMaskCommand_RawMatte(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "mask", env.input)
	require.NoError(t, err)
	want := filepath.Join(env.dir, "photo-matte.png")
	assert.Contains(t, out, "Wrote matte to "+want)

	got := openGray(t, want)
	assert.Equal(t, uint8(255), got.GrayAt(3, 3).Y)
	assert.Equal(t, uint8(0), got.GrayAt(1, 1).Y)
}

func TestMaskCommand_BareDilateUsesConfiguredRadius(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "mask", env.input, "--dilate")
	require.NoError(t, err)
	want := filepath.Join(env.dir, "photo-mask.png")
	assert.Contains(t, out, want)

	got := openGray(t, want)
	for _, v := range got.Pix {
		assert.Equal(t, uint8(255), v)
	}
}

func TestMaskCommand_ExplicitOutputAndRawSource(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.dir, "nested", "out.png")

	_, err := runCLI(t, env, "mask", env.input, "--blur=2", "--mask-source", "raw", "-o", target)
	require.NoError(t, err)
	got := openGray(t, target)
	assert.Equal(t, uint8(0), got.GrayAt(1, 1).Y)
}

func TestMaskCommand_RejectsBadFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "blur not a number", args: []string{"--blur=abc"}},
		{name: "zero sigma", args: []string{"--blur=0"}},
		{name: "threshold out of range", args: []string{"--mask-threshold", "300"}},
		{name: "unknown binary", args: []string{"--binary=maybe"}},
		{name: "unknown source", args: []string{"--mask-source", "best"}},
		{name: "negative dilate", args: []string{"--dilate=-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupCLITestEnv(t)
			_, err := runCLI(t, env, append([]string{"mask", env.input}, tt.args...)...)
			assert.Error(t, err)
			_, statErr := os.Stat(filepath.Join(env.dir, "photo-matte.png"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestMaskCommand_MissingEndpoint(t *testing.T) {
	t.Setenv(config.EndpointEnv, "")
	env := setupCLITestEnv(t)

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", env.configPath, "--log-level", "error", "mask", env.input})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--endpoint")
	assert.Contains(t, err.Error(), config.EndpointEnv)
}

func TestCutCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	maskPath := filepath.Join(env.dir, "exports", "mask.png")

	out, err := runCLI(t, env, "cut", env.input, "--trim", "--export-matte", "--export-mask="+maskPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote foreground")

	fg, err := util.OpenImage(filepath.Join(env.dir, "photo-foreground.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), fg.Bounds())
	assert.Equal(t, color.NRGBA{R: 200, G: 50, B: 25, A: 255}, color.NRGBAModel.Convert(fg.At(0, 0)))

	assert.FileExists(t, filepath.Join(env.dir, "photo-matte.png"))
	assert.FileExists(t, maskPath)
}

func TestTraceCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "trace", env.input, "--filter-speckle", "0", "--mode", "polygon")
	require.NoError(t, err)
	want := filepath.Join(env.dir, "photo.svg")
	assert.Contains(t, out, want)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), "M2,2 L6,2 L6,6 L2,6 Z")
}

func TestTraceCommand_UnknownVectorizer(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := runCLI(t, env, "trace", env.input, "--vectorizer", "potrace")
	assert.ErrorContains(t, err, "potrace")
}

func TestComposeCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := runCLI(t, env, "compose", env.input,
		"--dilate=1", "--fg-mask-source", "raw", "--bg-color", "#00ff00", "--export-bg-layer")
	require.NoError(t, err)

	img, err := util.OpenImage(filepath.Join(env.dir, "photo-composite.png"))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 200, G: 50, B: 25, A: 255}, color.NRGBAModel.Convert(img.At(4, 4)))
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, color.NRGBAModel.Convert(img.At(1, 4)))
	assert.FileExists(t, filepath.Join(env.dir, "photo-bg-layer.png"))
	assert.NoFileExists(t, filepath.Join(env.dir, "photo-foreground.png"))
}

func TestComposeCommand_RejectsBadFill(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := runCLI(t, env, "compose", env.input, "--bg-alpha-mode", "solid", "--bg-solid-alpha", "300")
	assert.ErrorContains(t, err, "--bg-solid-alpha")
	_, err = runCLI(t, env, "compose", env.input, "--bg-color", "green")
	assert.ErrorContains(t, err, "--bg-color")
}

func TestConfigSampleCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "sample"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, config.Sample(), out.String())

	target := filepath.Join(t.TempDir(), "outline.toml")
	for i, wantErr := range []bool{false, true} {
		cmd := newRootCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"config", "sample", "--path", target})
		err := cmd.Execute()
		if wantErr {
			assert.ErrorContains(t, err, "already exists", "run %d", i)
		} else {
			require.NoError(t, err)
		}
	}
	assert.FileExists(t, target)
}

func TestMaskFlags(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	d := cfg.MaskDefaults()
	tests := []struct {
		name string
		args []string
		want session.MaskArgs
	}{
		{name: "nothing", want: session.MaskArgs{}},
		{
			name: "bare flags use defaults",
			args: []string{"--blur", "--dilate", "--binary"},
			want: session.MaskArgs{Blur: &d.BlurSigma, Dilate: &d.DilateRadius, Binary: session.BinaryEnabled},
		},
		{
			name: "explicit values",
			args: []string{"--blur=1.5", "--dilate=3", "--binary=disabled", "--fill-holes"},
			want: session.MaskArgs{Blur: ptr(1.5), Dilate: ptr(3.0), Binary: session.BinaryDisabled, FillHoles: true},
		},
		{
			name: "fractional threshold",
			args: []string{"--mask-threshold", "0.5"},
			want: session.MaskArgs{Threshold: ptr(uint8(128))},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var mf maskFlags
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			addMaskFlags(fs, &mf)
			require.NoError(t, fs.Parse(tt.args))

			got, err := mf.args(d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaskFlags_BinaryHelpPointsAtProcessedSource(t *testing.T) {
	t.Parallel()

	var mf maskFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addMaskFlags(fs, &mf)
	assert.Contains(t, fs.Lookup("binary").Usage, "--mask-source processed")
}

func TestExportPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", exportPath("", "in/a.png", "matte"))
	assert.Equal(t, filepath.Join("in", "a-matte.png"), exportPath(useDefault, "in/a.png", "matte"))
	assert.Equal(t, "x.png", exportPath("x.png", "in/a.png", "matte"))
	assert.Equal(t, filepath.Join("in", "a-composite.png"), outputPath("", "in/a.png", "composite"))
}

func ptr[T any](v T) *T { return &v }
