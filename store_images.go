package blogadmin

import (
	"context"
	"fmt"
)

// SaveImage records metadata for an uploaded image. A taken filename yields
// ErrConflict.
func (s *Store) SaveImage(ctx context.Context, img Image) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO images (filename, original_name, width, height, size, url, uploaded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, img.URL, formatTime(img.UploadedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("image %s: %w", img.Filename, ErrConflict)
	}
	return err
}

// ListImages returns all images, newest first.
func (s *Store) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT filename, original_name, width, height, size, url, uploaded_at FROM images ORDER BY uploaded_at DESC, filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		var uploaded string
		if err := rows.Scan(&img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &img.URL, &uploaded); err != nil {
			return nil, err
		}
		img.UploadedAt = parseTime(uploaded)
		images = append(images, img)
	}
	return images, rows.Err()
}

// ImageExists reports whether filename is already recorded.
func (s *Store) ImageExists(ctx context.Context, filename string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE filename = ?`, filename).Scan(&n)
	return n > 0, err
}

// DeleteImage removes the metadata row of filename.
func (s *Store) DeleteImage(ctx context.Context, filename string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE filename = ?`, filename)
	if err != nil {
		return err
	}
	if err := expectAffected(res, "image", filename); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}
