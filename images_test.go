package blogadmin

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 200, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestImages(t *testing.T, maxWidth int, maxSize int64) (*ImageService, *LocalImageStorage) {
	t.Helper()
	storage := NewLocalImageStorage(filepath.Join(t.TempDir(), "uploads"), "")
	return NewImageService(newTestStore(t), storage, Auditor{}, maxWidth, maxSize), storage
}

func TestProcessImageResizes(t *testing.T) {
	img, data, err := processImage(bytes.NewReader(testPNG(t, 400, 200)), "My Photo.PNG", 100)
	require.NoError(t, err)
	assert.Equal(t, "my-photo.jpg", img.Filename)
	assert.Equal(t, "My Photo.PNG", img.OriginalName)
	assert.Equal(t, 100, img.Width)
	assert.Equal(t, 50, img.Height)
	assert.Equal(t, len(data), img.Size)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
}

func TestProcessImageKeepsSmallImages(t *testing.T) {
	img, _, err := processImage(bytes.NewReader(testPNG(t, 80, 60)), "small.png", 100)
	require.NoError(t, err)
	assert.Equal(t, 80, img.Width)
	assert.Equal(t, 60, img.Height)
}

func TestSlugifyFilename(t *testing.T) {
	assert.Equal(t, "holiday-2024", slugifyFilename("/tmp/Holiday 2024.jpeg"))
	assert.Equal(t, "image", slugifyFilename("???.png"))
}

func TestImageServiceUpload(t *testing.T) {
	svc, storage := newTestImages(t, 100, 0)
	ctx := context.Background()

	first, err := svc.Upload(ctx, bytes.NewReader(testPNG(t, 300, 300)), "cat.png")
	require.NoError(t, err)
	assert.Equal(t, "cat.jpg", first.Filename)
	assert.Equal(t, "/public/uploads/cat.jpg", first.URL)
	assert.Equal(t, 100, first.Width)
	_, err = os.Stat(filepath.Join(storage.Dir, "cat.jpg"))
	require.NoError(t, err)

	second, err := svc.Upload(ctx, bytes.NewReader(testPNG(t, 20, 20)), "cat.gif")
	require.NoError(t, err)
	assert.Equal(t, "cat-2.jpg", second.Filename)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestImageServiceConcurrentSameName(t *testing.T) {
	svc, storage := newTestImages(t, 0, 0)
	ctx := context.Background()
	data := testPNG(t, 16, 16)

	const n = 16
	names := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := svc.Upload(ctx, bytes.NewReader(data), "photo.png")
			assert.NoError(t, err)
			names[i] = img.Filename
		}()
	}
	wg.Wait()

	distinct := make(map[string]bool)
	for _, name := range names {
		distinct[name] = true
	}
	assert.Len(t, distinct, n)
	assert.True(t, distinct["photo.jpg"])

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, n)
	entries, err := os.ReadDir(storage.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestImageServiceUploadRejects(t *testing.T) {
	svc, _ := newTestImages(t, 0, 1024)
	ctx := context.Background()

	_, err := svc.Upload(ctx, strings.NewReader("definitely not an image"), "notes.txt")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Upload(ctx, bytes.NewReader(make([]byte, 2048)), "huge.png")
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "too large")
}

func TestImageServiceDelete(t *testing.T) {
	svc, storage := newTestImages(t, 0, 0)
	ctx := context.Background()
	img, err := svc.Upload(ctx, bytes.NewReader(testPNG(t, 10, 10)), "dot.png")
	require.NoError(t, err)

	for _, bad := range []string{"", "../etc/passwd", `a\b.jpg`, ".hidden"} {
		assert.ErrorIs(t, svc.Delete(ctx, bad), ErrInvalid, bad)
	}

	require.NoError(t, svc.Delete(ctx, img.Filename))
	exists, err := storage.Exists(ctx, img.Filename)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.ErrorIs(t, svc.Delete(ctx, img.Filename), ErrNotFound)
}

func TestContentPipelineUploadsEmbeddedImages(t *testing.T) {
	images, storage := newTestImages(t, 0, 0)
	pipeline := NewContentPipeline(images)
	ctx := context.Background()

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 8, 8))
	content := `<p>Look</p><img src="` + uri + `"><p>again</p><img src="` + uri + `">`

	preview, stored, err := pipeline.Prepare(ctx, content, FormatHTML, false)
	require.NoError(t, err)
	assert.Contains(t, preview, uri)
	assert.Empty(t, stored)

	out, stored, err := pipeline.Prepare(ctx, content, FormatHTML, true)
	require.NoError(t, err)
	assert.NotContains(t, out, "data:image")
	assert.Equal(t, 2, strings.Count(out, `src="/public/uploads/image-`))
	require.Len(t, stored, 1)

	entries, err := os.ReadDir(storage.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a repeated image is stored once")

	pipeline.Discard(ctx, stored)
	entries, err = os.ReadDir(storage.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	list, err := images.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestContentPipelineRejectsBrokenImages(t *testing.T) {
	images, _ := newTestImages(t, 0, 0)
	pipeline := NewContentPipeline(images)

	_, _, err := pipeline.Prepare(context.Background(), `<img src="data:image/png;base64,!!!!">`, FormatHTML, true)
	assert.ErrorIs(t, err, ErrInvalid)

	_, _, err = pipeline.Prepare(context.Background(), `<img src="data:image/png;base64,`+base64.StdEncoding.EncodeToString([]byte("text"))+`">`, FormatHTML, true)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestContentPipelineFailureRemovesStoredImages(t *testing.T) {
	images, storage := newTestImages(t, 0, 0)
	pipeline := NewContentPipeline(images)
	ctx := context.Background()

	good := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 8, 8))
	bad := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a picture"))
	content := `<img src="` + good + `"><img src="` + bad + `">`

	for range 2 {
		_, stored, err := pipeline.Prepare(ctx, content, FormatHTML, true)
		require.ErrorIs(t, err, ErrInvalid)
		assert.Empty(t, stored)
	}

	list, err := images.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	entries, err := os.ReadDir(storage.Dir)
	if !os.IsNotExist(err) {
		require.NoError(t, err)
	}
	assert.Empty(t, entries)
}

func TestContentPipelineMarkdown(t *testing.T) {
	pipeline := NewContentPipeline(nil)
	out, _, err := pipeline.Prepare(context.Background(), "## Title\n\n<script>x()</script>text", FormatMarkdown, true)
	require.NoError(t, err)
	assert.Contains(t, out, "<h2>Title</h2>")
	assert.NotContains(t, out, "<script>")
}
