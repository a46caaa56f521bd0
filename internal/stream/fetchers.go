package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Faultbox/geoscape/internal/lod"
)

// ErrTileNotFound is returned by fetchers that have no payload for a tile.
var ErrTileNotFound = errors.New("tile not found")

// DirFetcher reads tiles laid out as <root>/<level>/<x>/<y><ext>.
type DirFetcher struct {
	Root string
	Ext  string
}

// Path returns the file path of a tile.
func (f DirFetcher) Path(id lod.TileID) string {
	return filepath.Join(f.Root, strconv.Itoa(id.Level), strconv.Itoa(id.X), strconv.Itoa(id.Y)+f.Ext)
}

// Fetch reads the tile file.
func (f DirFetcher) Fetch(ctx context.Context, id lod.TileID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", id, ErrTileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading tile %s: %w", id, err)
	}
	return data, nil
}

// SyntheticFetcher produces a 12-byte payload holding the tile's level, x
// and y as little-endian uint32s.
type SyntheticFetcher struct{}

// Fetch encodes the tile id.
func (SyntheticFetcher) Fetch(ctx context.Context, id lod.TileID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:], uint32(id.Level))
	binary.LittleEndian.PutUint32(buf[4:], uint32(id.X))
	binary.LittleEndian.PutUint32(buf[8:], uint32(id.Y))
	return buf, nil
}

// DecodeSynthetic reverses SyntheticFetcher's payload.
func DecodeSynthetic(data []byte) (lod.TileID, error) {
	if len(data) != 12 {
		return lod.TileID{}, fmt.Errorf("synthetic payload: got %d bytes, want 12", len(data))
	}
	return lod.TileID{
		Level: int(binary.LittleEndian.Uint32(data[0:])),
		X:     int(binary.LittleEndian.Uint32(data[4:])),
		Y:     int(binary.LittleEndian.Uint32(data[8:])),
	}, nil
}
