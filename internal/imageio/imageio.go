// Package imageio decodes image files into grids and writes grids back out.
//
// Grayscale sources become H×W grids. Colour sources become H×W×3 grids in
// BGR order, or H×W×4 (BGRA) when the source has any transparency.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"kuwahara/internal/models"
	"kuwahara/pkg/grid"
)

// DefaultJPEGQuality is used when a caller passes a quality outside 1..100.
const DefaultJPEGQuality = 95

// supportedInputs lists the extensions Load accepts.
var supportedInputs = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsSupported reports whether path has an extension Load can decode.
func IsSupported(path string) bool {
	return supportedInputs[strings.ToLower(filepath.Ext(path))]
}

// Load decodes the image at path into a Frame.
func Load(path string, index int) (*models.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return &models.Frame{
		Pixels:   ToGrid(img),
		Index:    index,
		Filename: path,
		Format:   format,
	}, nil
}

// ToGrid converts img to a uint8 grid.
func ToGrid(img image.Image) *grid.Image[uint8] {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		out, _ := grid.New[uint8](h, w)
		data := out.Data()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				data[y*w+x] = g.Y
			}
		}
		return out
	}

	// NRGBA sources are read directly; anything else goes through a
	// conversion, which is lossy for translucent premultiplied pixels.
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Copy(nrgba, image.Point{}, img, b, draw.Src, nil)
	}
	origin := nrgba.Bounds().Min

	channels := 3
	if !nrgba.Opaque() {
		channels = 4
	}
	out, _ := grid.New[uint8](h, w, channels)
	data := out.Data()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := nrgba.PixOffset(origin.X+x, origin.Y+y)
			px := nrgba.Pix[off : off+4]
			d := data[(y*w+x)*channels : (y*w+x+1)*channels]
			d[0], d[1], d[2] = px[2], px[1], px[0]
			if channels == 4 {
				d[3] = px[3]
			}
		}
	}
	return out
}

// FromGrid converts a uint8 grid produced by ToGrid (or the filter) back to
// an image.Image.
func FromGrid(g *grid.Image[uint8]) (image.Image, error) {
	shape := g.Shape()
	if len(shape) < 2 || len(shape) > 3 {
		return nil, fmt.Errorf("cannot convert grid of shape %v to an image", shape)
	}
	h, w, c := g.Height(), g.Width(), g.Channels()
	data := g.Data()

	switch c {
	case 1:
		img := image.NewGray(image.Rect(0, 0, w, h))
		copy(img.Pix, data)
		return img, nil
	case 3, 4:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for p := 0; p < w*h; p++ {
			d := data[p*c : (p+1)*c]
			px := img.Pix[p*4 : p*4+4]
			px[0], px[1], px[2], px[3] = d[2], d[1], d[0], 255
			if c == 4 {
				px[3] = d[3]
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("cannot convert %d-channel grid to an image", c)
}

// PlaneToImage renders a float plane as an 8-bit grayscale image, mapping
// [lo, hi] onto [0, 255]. A degenerate range renders black.
func PlaneToImage(plane *grid.Image[float64], lo, hi float64) (*image.Gray, error) {
	if plane.Rank() != 2 && !(plane.Rank() == 3 && plane.Channels() == 1) {
		return nil, fmt.Errorf("expected a single channel plane, got shape %v", plane.Shape())
	}
	h, w := plane.Height(), plane.Width()
	img := image.NewGray(image.Rect(0, 0, w, h))

	span := hi - lo
	cast := grid.Caster[uint8]()
	for i, v := range plane.Data() {
		if span > 0 {
			img.Pix[i] = cast((v - lo) / span * 255)
		}
	}
	return img, nil
}

// Encode writes img to w in the named format (png, jpeg, bmp or tiff).
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch normalizeFormat(format) {
	case "png":
		return png.Encode(w, img)
	case "jpeg":
		if quality < 1 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// Save writes img to path, choosing the encoder from the file extension.
func Save(path string, img image.Image, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if err := Encode(file, img, filepath.Ext(path), quality); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return file.Close()
}

// SaveGrid converts g and writes it to path.
func SaveGrid(path string, g *grid.Image[uint8], quality int) error {
	img, err := FromGrid(g)
	if err != nil {
		return err
	}
	return Save(path, img, quality)
}

// Extension returns the canonical file extension for an encoder format name.
func Extension(format string) string {
	switch normalizeFormat(format) {
	case "jpeg":
		return ".jpg"
	case "":
		return ""
	default:
		return "." + normalizeFormat(format)
	}
}

func normalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	switch f {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return f
}
