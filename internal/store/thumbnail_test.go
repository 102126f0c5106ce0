package store_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilevault/tilevault-go/internal/store"
	"github.com/tilevault/tilevault-go/internal/testutil"
)

func tilePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGenerateThumbnail(t *testing.T) {
	thumb, err := store.GenerateThumbnail(tilePNG(t, 512, 512))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, img.Bounds().Dx(), 256)
	assert.LessOrEqual(t, img.Bounds().Dy(), 256)
}

func TestGenerateThumbnail_InvalidData(t *testing.T) {
	_, err := store.GenerateThumbnail([]byte("not an image"))
	assert.Error(t, err)
}

func TestStoreThumbnailRoundTrip(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))
	_, err := s.CreateStore("osm")
	require.NoError(t, err)

	thumb, err := s.GetStoreThumbnail("osm")
	require.NoError(t, err)
	assert.Nil(t, thumb)

	require.NoError(t, s.SetStoreThumbnail("osm", []byte("jpeg-bytes")))

	thumb, err = s.GetStoreThumbnail("osm")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), thumb)

	assert.ErrorIs(t, s.SetStoreThumbnail("missing", nil), store.ErrStoreNotFound)
	_, err = s.GetStoreThumbnail("missing")
	assert.ErrorIs(t, err, store.ErrStoreNotFound)
}
