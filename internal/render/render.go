package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/chart"
)

// Renderer draws prepared chart data. The pipeline hands it column data and
// never produces pixels itself.
type Renderer interface {
	Render(w io.Writer, data *chart.Data, opt Options) error
}

// Options controls output size and encoding.
type Options struct {
	// Width and Height in points.
	Width  float64
	Height float64
	// Format is an image format accepted by gonum/plot: png, svg, pdf, jpg, eps or tiff.
	Format string
}

// DefaultOptions returns a 640x480 point PNG.
func DefaultOptions() Options {
	return Options{Width: 640, Height: 480, Format: "png"}
}

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("no data to plot")

var formats = map[string]bool{
	"png": true, "svg": true, "pdf": true, "jpg": true, "jpeg": true, "eps": true, "tif": true, "tiff": true,
}

// FormatFromPath infers an image format from a file extension, defaulting to fallback.
func FormatFromPath(path, fallback string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		if ext := strings.ToLower(path[i+1:]); formats[ext] {
			return ext
		}
	}
	return fallback
}

func (o Options) validate() (Options, error) {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	o.Format = strings.ToLower(strings.TrimSpace(o.Format))
	if o.Format == "" {
		o.Format = d.Format
	}
	if !formats[o.Format] {
		return o, fmt.Errorf("unsupported image format %q", o.Format)
	}
	return o, nil
}
