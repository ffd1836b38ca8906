// Package assets describes image renditions. Files themselves are produced
// elsewhere; this package only computes the dimensions and URL a rendition
// filter yields for an original image.
package assets

import (
	"fmt"
	"headless-cms/internal/data"
	"math"
	"path"
	"strconv"
	"strings"
)

// Rendition is the attribute set of one derived image.
type Rendition struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Filter is a parsed rendition spec such as "original" or "width-1600".
type Filter struct {
	Spec  string
	Width int
	// Height is set for height-N filters.
	Height int
}

// ParseFilter parses "original", "width-N" and "height-N".
func ParseFilter(spec string) (Filter, error) {
	if spec == "original" {
		return Filter{Spec: spec}, nil
	}
	op, arg, ok := strings.Cut(spec, "-")
	if !ok {
		return Filter{}, fmt.Errorf("invalid rendition filter %q", spec)
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return Filter{}, fmt.Errorf("invalid size in rendition filter %q", spec)
	}
	switch op {
	case "width":
		return Filter{Spec: spec, Width: n}, nil
	case "height":
		return Filter{Spec: spec, Height: n}, nil
	}
	return Filter{}, fmt.Errorf("unsupported rendition filter %q", spec)
}

// Pipeline computes renditions below a media URL.
type Pipeline struct {
	mediaURL string
}

// NewPipeline creates a Pipeline serving files from mediaURL.
func NewPipeline(mediaURL string) *Pipeline {
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	return &Pipeline{mediaURL: mediaURL}
}

// Rendition returns the rendition of img produced by spec. The aspect ratio
// is kept and images are never upscaled.
func (p *Pipeline) Rendition(img *data.Image, spec string) (*Rendition, error) {
	if img == nil {
		return nil, fmt.Errorf("rendition %s of a missing image", spec)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("image %d has no dimensions", img.ID)
	}
	f, err := ParseFilter(spec)
	if err != nil {
		return nil, err
	}
	format, err := formatOf(img.File)
	if err != nil {
		return nil, err
	}

	w, h := img.Width, img.Height
	switch {
	case f.Width > 0 && f.Width < w:
		h = scale(h, f.Width, w)
		w = f.Width
	case f.Height > 0 && f.Height < h:
		w = scale(w, f.Height, h)
		h = f.Height
	}

	return &Rendition{
		URL:    p.url(img.File, f.Spec),
		Width:  w,
		Height: h,
		Format: format,
	}, nil
}

func (p *Pipeline) url(file, spec string) string {
	base := path.Base(file)
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%simages/%s.%s%s", p.mediaURL, name, spec, strings.ToLower(ext))
}

// scale returns v*num/den rounded, at least 1.
func scale(v, num, den int) int {
	s := int(math.Round(float64(v) * float64(num) / float64(den)))
	if s < 1 {
		return 1
	}
	return s
}

func formatOf(file string) (string, error) {
	switch strings.ToLower(path.Ext(file)) {
	case ".jpg", ".jpeg":
		return "jpeg", nil
	case ".png":
		return "png", nil
	case ".gif":
		return "gif", nil
	case ".webp":
		return "webp", nil
	}
	return "", fmt.Errorf("unsupported image format for %q", file)
}
