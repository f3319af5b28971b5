package batch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kuwahara/internal/imageio"
	"kuwahara/pkg/kuwahara"
)

// createTestImage creates a noisy two-tone colour image
func createTestImage(width, height int, seed int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			base := uint8(40)
			if x >= width/2 {
				base = 200
			}
			noise := uint8((x*7 + y*13 + seed*31) % 21)
			img.Set(x, y, color.RGBA{R: base + noise, G: base, B: base - noise/2, A: 255})
		}
	}
	return img
}

// createTestFrames writes numbered frames into dir
func createTestFrames(t *testing.T, dir string, names ...string) {
	t.Helper()
	for i, name := range names {
		if err := imageio.Save(filepath.Join(dir, name), createTestImage(24, 16, i), 0); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
}

// TestExtractNumber verifies numeric ordering keys
func TestExtractNumber(t *testing.T) {
	tests := map[string]int{
		"frame_9.png":    9,
		"frame_10.png":   10,
		"dir/img007.jpg": 7,
		"no_digits.png":  0,
		"a1b2.png":       12,
	}
	for name, expected := range tests {
		if got := extractNumber(name); got != expected {
			t.Errorf("extractNumber(%q): expected %d, got %d", name, expected, got)
		}
	}
}

// TestProcessDirectory runs the pipeline over a directory of frames
func TestProcessDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	inputDir := filepath.Join(tmpDir, "input")
	outputDir := filepath.Join(tmpDir, "output")
	intermediaryDir := filepath.Join(tmpDir, "intermediary")
	if err := os.MkdirAll(inputDir, 0755); err != nil {
		t.Fatalf("Failed to create input dir: %v", err)
	}
	createTestFrames(t, inputDir, "frame_10.png", "frame_9.png", "frame_1.bmp")
	if err := os.WriteFile(filepath.Join(inputDir, "notes.txt"), []byte("skip me"), 0644); err != nil {
		t.Fatalf("Failed to write notes: %v", err)
	}

	var progress bytes.Buffer
	params := &Params{
		InputPath:               inputDir,
		OutputPath:              outputDir,
		NumCores:                2,
		Options:                 kuwahara.Options{Method: kuwahara.Gaussian, Radius: 2},
		SaveIntermediaryResults: true,
		IntermediaryDir:         intermediaryDir,
		ReportMetrics:           true,
		Progress:                &progress,
	}

	processor := NewProcessor(params)
	if err := processor.Process(context.Background()); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	outcomes := processor.Outcomes()
	if len(outcomes) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(outcomes))
	}

	expectedOrder := []string{"frame_1.bmp", "frame_9.png", "frame_10.png"}
	for i, o := range outcomes {
		if got := filepath.Base(o.Frame.Filename); got != expectedOrder[i] {
			t.Errorf("Outcome %d: expected %s, got %s", i, expectedOrder[i], got)
		}
		if o.Err != nil {
			t.Errorf("Outcome %d failed: %v", i, o.Err)
		}
		if _, err := os.Stat(o.OutputPath); err != nil {
			t.Errorf("Output %s missing: %v", o.OutputPath, err)
		}
		if o.Metrics == nil {
			t.Errorf("Outcome %d has no metrics", i)
		} else if o.Metrics.VarianceReduction <= 0 {
			t.Errorf("Outcome %d: expected smoothing to reduce variance, got %f", i, o.Metrics.VarianceReduction)
		}

		got := o.Filtered.Shape()
		if len(got) != 3 || got[0] != 16 || got[1] != 24 || got[2] != 3 {
			t.Errorf("Outcome %d: unexpected shape %v", i, got)
		}

		for _, stage := range []string{"measurement", "selection"} {
			name := filepath.Join(intermediaryDir, stage, []string{"000.png", "001.png", "002.png"}[i])
			if _, err := os.Stat(name); err != nil {
				t.Errorf("Intermediary file %s missing: %v", name, err)
			}
		}
	}

	if ext := filepath.Ext(outcomes[0].OutputPath); ext != ".bmp" {
		t.Errorf("Expected input format to be kept, got %s", ext)
	}

	avg, count := processor.AverageMetrics()
	if count != 3 {
		t.Errorf("Expected metrics for 3 images, got %d", count)
	}
	if avg.SSIM <= 0 || avg.SSIM > 1 {
		t.Errorf("Expected average SSIM in (0, 1], got %f", avg.SSIM)
	}

	if !strings.Contains(progress.String(), "Found 3 image(s)") {
		t.Errorf("Unexpected progress output: %s", progress.String())
	}
}

// TestProcessSingleFile verifies file to file processing and format override
func TestProcessSingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFrames(t, tmpDir, "photo.png")
	input := filepath.Join(tmpDir, "photo.png")

	t.Run("ExplicitFile", func(t *testing.T) {
		output := filepath.Join(tmpDir, "out", "smoothed.jpg")
		processor := NewProcessor(&Params{
			InputPath:   input,
			OutputPath:  output,
			NumCores:    1,
			Options:     kuwahara.DefaultOptions(),
			JPEGQuality: 90,
			Progress:    &bytes.Buffer{},
		})
		if err := processor.Process(context.Background()); err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if got := processor.Outcomes()[0].OutputPath; got != output {
			t.Errorf("Expected output %s, got %s", output, got)
		}
		frame, err := imageio.Load(output, 0)
		if err != nil {
			t.Fatalf("Failed to reload output: %v", err)
		}
		if frame.Format != "jpeg" {
			t.Errorf("Expected jpeg output, got %s", frame.Format)
		}
	})

	t.Run("OutputDirectory", func(t *testing.T) {
		outDir := filepath.Join(tmpDir, "results")
		processor := NewProcessor(&Params{
			InputPath:  input,
			OutputPath: outDir,
			Format:     "tiff",
			Options:    kuwahara.DefaultOptions(),
			Progress:   &bytes.Buffer{},
		})
		if err := processor.Process(context.Background()); err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		expected := filepath.Join(outDir, "photo_kuwahara.tiff")
		if got := processor.Outcomes()[0].OutputPath; got != expected {
			t.Errorf("Expected output %s, got %s", expected, got)
		}
	})
}

// TestProcessErrors verifies failures are reported
func TestProcessErrors(t *testing.T) {
	tmpDir := t.TempDir()

	empty := NewProcessor(&Params{InputPath: tmpDir, OutputPath: tmpDir, Progress: &bytes.Buffer{}})
	if err := empty.Process(context.Background()); err == nil {
		t.Error("Expected error for a directory without images")
	}

	missing := NewProcessor(&Params{InputPath: filepath.Join(tmpDir, "missing"), Progress: &bytes.Buffer{}})
	if err := missing.Process(context.Background()); err == nil {
		t.Error("Expected error for a missing input")
	}

	createTestFrames(t, tmpDir, "ok_1.png")
	if err := os.WriteFile(filepath.Join(tmpDir, "broken_2.png"), []byte("not a png"), 0644); err != nil {
		t.Fatalf("Failed to write broken file: %v", err)
	}
	mixed := NewProcessor(&Params{
		InputPath:  tmpDir,
		OutputPath: filepath.Join(tmpDir, "out"),
		NumCores:   2,
		Options:    kuwahara.DefaultOptions(),
		Progress:   &bytes.Buffer{},
	})
	err := mixed.Process(context.Background())
	if err == nil || !strings.Contains(err.Error(), "broken_2.png") {
		t.Errorf("Expected error naming the broken file, got %v", err)
	}
	outcomes := mixed.Outcomes()
	if len(outcomes) != 2 || outcomes[0].Err != nil || outcomes[1].Err == nil {
		t.Errorf("Expected only the second image to fail, got %+v", outcomes)
	}

	invalid := NewProcessor(&Params{
		InputPath:  filepath.Join(tmpDir, "ok_1.png"),
		OutputPath: filepath.Join(tmpDir, "never.png"),
		Options:    kuwahara.Options{Method: kuwahara.Mean, Radius: 0},
		Progress:   &bytes.Buffer{},
	})
	if err := invalid.Process(context.Background()); err == nil {
		t.Error("Expected error for radius 0")
	}
}
