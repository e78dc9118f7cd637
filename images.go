package blogadmin

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/eringen/blogadmin/activity"
)

const (
	defaultMaxImageWidth = 1200
	jpegQuality          = 80
	defaultMaxUploadSize = 10 << 20 // 10MB
	uploadsSubdir        = "uploads"
)

// processImage decodes an image from src, downscales it to maxWidth if it is
// wider, and encodes it as JPEG. Returns metadata and the encoded bytes.
func processImage(src io.Reader, originalName string, maxWidth int) (Image, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Image{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if maxWidth > 0 && w > maxWidth {
		newH := h * maxWidth / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return Image{
		Filename:     slugifyFilename(originalName) + ".jpg",
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		UploadedAt:   time.Now().UTC(),
	}, buf.Bytes(), nil
}

// slugifyFilename converts a filename (without extension) to a URL-safe slug.
func slugifyFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if s := Slugify(base); s != "" {
		return s
	}
	return "image"
}

// ImageService re-encodes uploads, stores the bytes in an ImageStorage and
// keeps their metadata in the Store.
type ImageService struct {
	store    *Store
	storage  ImageStorage
	audit    Auditor
	maxWidth int
	maxSize  int64

	// nameMu is held from picking a free filename until its row is saved.
	nameMu sync.Mutex
}

// NewImageService creates an ImageService. Zero limits fall back to 1200px
// and 10MB.
func NewImageService(store *Store, storage ImageStorage, audit Auditor, maxWidth int, maxSize int64) *ImageService {
	if maxWidth <= 0 {
		maxWidth = defaultMaxImageWidth
	}
	if maxSize <= 0 {
		maxSize = defaultMaxUploadSize
	}
	return &ImageService{store: store, storage: storage, audit: audit, maxWidth: maxWidth, maxSize: maxSize}
}

// MaxSize is the largest accepted upload in bytes.
func (s *ImageService) MaxSize() int64 { return s.maxSize }

// Upload processes the image read from r and stores it under a unique name.
func (s *ImageService) Upload(ctx context.Context, r io.Reader, originalName string) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return Image{}, fmt.Errorf("%w: file too large (max %dMB)", ErrInvalid, s.maxSize>>20)
	}

	img, encoded, err := processImage(bytes.NewReader(data), originalName, s.maxWidth)
	if err != nil {
		return Image{}, fmt.Errorf("%w: invalid image: %v", ErrInvalid, err)
	}

	if err := s.save(ctx, &img, encoded); err != nil {
		return Image{}, err
	}
	s.audit.note(ctx, activity.ActionUpload, "image", img.Filename, img.OriginalName)
	return img, nil
}

func (s *ImageService) save(ctx context.Context, img *Image, encoded []byte) error {
	s.nameMu.Lock()
	defer s.nameMu.Unlock()

	if err := s.ensureUniqueFilename(ctx, img); err != nil {
		return err
	}
	url, err := s.storage.Put(ctx, img.Filename, encoded, "image/jpeg")
	if err != nil {
		return err
	}
	img.URL = url

	if err := s.store.SaveImage(ctx, *img); err != nil {
		_ = s.storage.Delete(ctx, img.Filename)
		return err
	}
	return nil
}

// discard removes images stored for a write that did not complete. It runs
// even when ctx is already cancelled.
func (s *ImageService) discard(ctx context.Context, filenames []string) {
	ctx = context.WithoutCancel(ctx)
	for _, name := range filenames {
		_ = s.store.DeleteImage(ctx, name)
		_ = s.storage.Delete(ctx, name)
	}
}

// ensureUniqueFilename appends a counter until the name is free in both the
// storage backend and the database.
func (s *ImageService) ensureUniqueFilename(ctx context.Context, img *Image) error {
	base := strings.TrimSuffix(img.Filename, ".jpg")
	candidate := img.Filename
	for counter := 2; ; counter++ {
		inStorage, err := s.storage.Exists(ctx, candidate)
		if err != nil {
			return err
		}
		inDB, err := s.store.ImageExists(ctx, candidate)
		if err != nil {
			return err
		}
		if !inStorage && !inDB {
			img.Filename = candidate
			return nil
		}
		candidate = fmt.Sprintf("%s-%d.jpg", base, counter)
	}
}

// List returns all uploaded images, newest first.
func (s *ImageService) List(ctx context.Context) ([]Image, error) {
	return s.store.ListImages(ctx)
}

// Delete removes an image's metadata and its stored bytes.
func (s *ImageService) Delete(ctx context.Context, filename string) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.HasPrefix(filename, ".") {
		return fmt.Errorf("%w: bad filename %q", ErrInvalid, filename)
	}
	if err := s.store.DeleteImage(ctx, filename); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, filename); err != nil {
		return fmt.Errorf("delete stored image: %w", err)
	}
	s.audit.note(ctx, activity.ActionDelete, "image", filename, filename)
	return nil
}
