package store

import (
	"bytes"
	"database/sql"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Register PNG decoder

	"github.com/nfnt/resize"
)

const thumbnailSize uint = 256

// GenerateThumbnail takes raw tile image data, resizes it, and encodes it
// as a JPEG suitable for the store listing UI.
func GenerateThumbnail(imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := resize.Thumbnail(thumbnailSize, thumbnailSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	// Quality 75 is a good balance between size and fidelity.
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// SetStoreThumbnail saves the preview image for a store.
func (s *Store) SetStoreThumbnail(name string, thumbnail []byte) error {
	res, err := s.db.Exec("UPDATE stores SET thumbnail = ? WHERE name = ?", thumbnail, name)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStoreNotFound
	}
	return nil
}

// GetStoreThumbnail returns the preview image for a store, or nil when none
// has been generated yet.
func (s *Store) GetStoreThumbnail(name string) ([]byte, error) {
	var thumb []byte
	err := s.db.QueryRow("SELECT thumbnail FROM stores WHERE name = ?", name).Scan(&thumb)
	if err == sql.ErrNoRows {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return thumb, nil
}
