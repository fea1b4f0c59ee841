// Package imaging holds pixel-level helpers: quality hints for diagnostics
// and the JPEG re-encoding used before an image is sent to the model.
package imaging

import (
	"image"
	"image/draw"

	"gonum.org/v1/gonum/stat"
)

// Quality thresholds, tuned for photographed labels
const (
	BlurThreshold       = 300.0
	DarkThreshold       = 0.15
	OverexposeThreshold = 0.95
)

// Quality summarises why OCR may have struggled with an image
type Quality struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	LaplacianVariance float64 `json:"laplacian_variance"`
	Brightness        float64 `json:"brightness"`
	Blurry            bool    `json:"blurry"`
	TooDark           bool    `json:"too_dark"`
	Overexposed       bool    `json:"overexposed"`
}

// Issues lists the failed checks by name
func (q Quality) Issues() []string {
	var issues []string
	if q.Blurry {
		issues = append(issues, "blurry")
	}
	if q.TooDark {
		issues = append(issues, "too_dark")
	}
	if q.Overexposed {
		issues = append(issues, "overexposed")
	}
	return issues
}

// Assess computes sharpness and exposure hints for img
func Assess(img image.Image) Quality {
	bounds := img.Bounds()
	q := Quality{Width: bounds.Dx(), Height: bounds.Dy()}
	if q.Width == 0 || q.Height == 0 {
		return q
	}

	gray := ToGray(img)
	q.LaplacianVariance = LaplacianVariance(gray)
	q.Brightness = Brightness(gray)

	// Images smaller than the 3x3 kernel have no variance to measure
	q.Blurry = q.Width >= 3 && q.Height >= 3 && q.LaplacianVariance < BlurThreshold
	q.TooDark = q.Brightness < DarkThreshold
	q.Overexposed = q.Brightness > OverexposeThreshold
	return q
}

// ToGray converts img to 8-bit grayscale
func ToGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// LaplacianVariance measures sharpness; low values indicate blur
func LaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := make([]float64, 0, (width-2)*(height-2))

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)

			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Brightness returns the mean luminance normalised to [0,1]
func Brightness(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return 0
	}

	values := make([]float64, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			values = append(values, float64(gray.GrayAt(x, y).Y)/255.0)
		}
	}
	return stat.Mean(values, nil)
}
