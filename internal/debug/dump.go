package debug

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/Faultbox/geoscape/internal/config"
	"github.com/Faultbox/geoscape/internal/logger"
	"github.com/Faultbox/geoscape/internal/visbuf"
)

// ErrUnknownFormat is returned for dump formats other than png and webp.
var ErrUnknownFormat = errors.New("unknown dump format")

// Dumper writes debug images to a directory.
type Dumper struct {
	Dir    string
	Format string // png | webp
	Scale  int    // integer upscale, <= 1 keeps native size
}

// NewDumper creates a dumper from config. It returns nil when dumping is
// disabled.
func NewDumper(cfg config.DebugConfig) (*Dumper, error) {
	if cfg.DumpDir == "" {
		return nil, nil
	}
	if cfg.DumpFormat != "png" && cfg.DumpFormat != "webp" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, cfg.DumpFormat)
	}
	return &Dumper{Dir: cfg.DumpDir, Format: cfg.DumpFormat, Scale: cfg.DumpScale}, nil
}

// Upscale enlarges img by an integer factor with nearest-neighbour
// filtering so individual texels stay sharp.
func Upscale(img image.Image, scale int) image.Image {
	if scale <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Encode writes img to w in the dumper's format.
func (d *Dumper) Encode(w io.Writer, img image.Image) error {
	img = Upscale(img, d.Scale)
	switch d.Format {
	case "png":
		return png.Encode(w, img)
	case "webp":
		return nativewebp.Encode(w, img, nil)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, d.Format)
	}
}

// Write stores img as <dir>/<name>.<format> and returns the path.
func (d *Dumper) Write(name string, img image.Image) (string, error) {
	path := filepath.Join(d.Dir, name+"."+d.Format)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := d.Encode(f, img); err != nil {
		return "", fmt.Errorf("encoding %s: %w", path, err)
	}
	logger.Debug("debug image written", zap.String("path", path))
	return path, nil
}

// WriteFrame dumps the visibility buffer and HZB level 0 of a frame.
func (d *Dumper) WriteFrame(frame uint64, buf *visbuf.Buffer, hzb *visbuf.Pyramid) error {
	if _, err := d.Write(fmt.Sprintf("frame%04d_visibility", frame), VisibilityImage(buf)); err != nil {
		return err
	}
	if hzb == nil {
		return nil
	}
	_, err := d.Write(fmt.Sprintf("frame%04d_depth", frame), DepthImage(hzb, 0))
	return err
}
