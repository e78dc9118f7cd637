package blogadmin

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/blogadmin/markdown"
)

// Content formats accepted by the post editor.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// maxConcurrentUploads bounds the embedded-image uploads of one post.
const maxConcurrentUploads = 4

var reEmbeddedImg = regexp.MustCompile(`<img[^>]+src="(data:image/[a-zA-Z0-9.+-]+;base64,[^"]+)"`)

// ContentPipeline turns editor content into the HTML that is stored: markdown
// is rendered, inline data-URI images are uploaded and their src rewritten,
// and the result is sanitized.
type ContentPipeline struct {
	images *ImageService
}

// NewContentPipeline creates a ContentPipeline. A nil images service leaves
// embedded images inline.
func NewContentPipeline(images *ImageService) *ContentPipeline {
	return &ContentPipeline{images: images}
}

// Prepare renders content in the given format to sanitized HTML. With
// storeImages false (preview) embedded images are left untouched.
// Otherwise it also returns the filenames of the images it stored, which the
// caller hands to Discard if the content is never saved.
func (p *ContentPipeline) Prepare(ctx context.Context, content, format string, storeImages bool) (string, []string, error) {
	html := content
	if format == FormatMarkdown {
		var err error
		if html, err = markdown.ToHTML(content); err != nil {
			return "", nil, fmt.Errorf("render markdown: %w", err)
		}
	}
	var stored []string
	if storeImages && p.images != nil {
		var err error
		if html, stored, err = p.uploadEmbeddedImages(ctx, html); err != nil {
			return "", nil, err
		}
	}
	return markdown.Sanitize(html), stored, nil
}

// Discard removes images returned by Prepare.
func (p *ContentPipeline) Discard(ctx context.Context, stored []string) {
	if p.images != nil && len(stored) > 0 {
		p.images.discard(ctx, stored)
	}
}

// uploadEmbeddedImages stores every distinct data-URI image in content and
// replaces it with the stored URL. On failure nothing stays stored.
func (p *ContentPipeline) uploadEmbeddedImages(ctx context.Context, content string) (string, []string, error) {
	var uris []string
	seen := make(map[string]bool)
	for _, m := range reEmbeddedImg.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			uris = append(uris, m[1])
		}
	}
	if len(uris) == 0 {
		return content, nil, nil
	}

	urls := make([]string, len(uris))
	names := make([]string, len(uris))
	stamp := time.Now().UnixMilli()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for i, uri := range uris {
		g.Go(func() error {
			data, err := decodeDataURI(uri)
			if err != nil {
				return fmt.Errorf("%w: embedded image %d: %v", ErrInvalid, i+1, err)
			}
			img, err := p.images.Upload(gctx, bytes.NewReader(data), fmt.Sprintf("image_%d_%d.jpg", stamp, i+1))
			if err != nil {
				return fmt.Errorf("embedded image %d: %w", i+1, err)
			}
			urls[i], names[i] = img.URL, img.Filename
			return nil
		})
	}
	err := g.Wait()
	stored := FilterEmpty(names)
	if err != nil {
		p.images.discard(ctx, stored)
		return "", nil, err
	}

	pairs := make([]string, 0, 2*len(uris))
	for i, uri := range uris {
		pairs = append(pairs, uri, urls[i])
	}
	return strings.NewReplacer(pairs...).Replace(content), stored, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	_, payload, ok := strings.Cut(uri, ";base64,")
	if !ok {
		return nil, fmt.Errorf("not a base64 data URI")
	}
	payload = strings.Join(strings.Fields(payload), "")
	return base64.StdEncoding.DecodeString(payload)
}
