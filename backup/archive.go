package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/hupe1980/nvram/blobstore"
)

// ErrInvalidTag is returned for empty tags or tags containing a slash.
var ErrInvalidTag = errors.New("backup: invalid tag")

const ext = ".img"

// Archive keeps tagged sets of region images in a blobstore.Store. Each
// image lives at "<tag>/<region>.img".
type Archive struct {
	store       blobstore.Store
	compression Compression
	logger      *slog.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithCompression selects the payload compression for new images.
func WithCompression(c Compression) Option {
	return func(a *Archive) { a.compression = c }
}

// WithLogger sets the logger. Nil discards logs.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewArchive creates an archive over store.
func NewArchive(store blobstore.Store, opts ...Option) *Archive {
	a := &Archive{
		store:       store,
		compression: Zstd,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func checkTag(tag string) error {
	if tag == "" || strings.Contains(tag, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	return nil
}

func key(tag, region string) string {
	return path.Join(tag, region+ext)
}

// Save frames and stores the image of region under tag.
func (a *Archive) Save(ctx context.Context, tag, region string, img []byte) error {
	if err := checkTag(tag); err != nil {
		return err
	}
	frame, err := Encode(img, a.compression)
	if err != nil {
		return err
	}
	if err := a.store.Put(ctx, key(tag, region), frame); err != nil {
		return fmt.Errorf("backup: save %s/%s: %w", tag, region, err)
	}
	a.logger.InfoContext(ctx, "saved region image",
		"tag", tag,
		"region", region,
		"bytes", len(img),
		"stored", len(frame),
		"compression", a.compression.String(),
	)
	return nil
}

// Load fetches and verifies the image of region under tag.
func (a *Archive) Load(ctx context.Context, tag, region string) ([]byte, error) {
	if err := checkTag(tag); err != nil {
		return nil, err
	}
	frame, err := a.store.Get(ctx, key(tag, region))
	if err != nil {
		return nil, fmt.Errorf("backup: load %s/%s: %w", tag, region, err)
	}
	img, err := Decode(frame)
	if err != nil {
		return nil, fmt.Errorf("backup: load %s/%s: %w", tag, region, err)
	}
	return img, nil
}

// Regions lists the regions stored under tag.
func (a *Archive) Regions(ctx context.Context, tag string) ([]string, error) {
	if err := checkTag(tag); err != nil {
		return nil, err
	}
	names, err := a.store.List(ctx, tag+"/")
	if err != nil {
		return nil, err
	}
	var regions []string
	for _, name := range names {
		base := strings.TrimPrefix(name, tag+"/")
		if strings.HasSuffix(base, ext) && !strings.Contains(base, "/") {
			regions = append(regions, strings.TrimSuffix(base, ext))
		}
	}
	return regions, nil
}

// Tags lists every tag that holds at least one image.
func (a *Archive) Tags(ctx context.Context) ([]string, error) {
	names, err := a.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, name := range names {
		tag, rest, ok := strings.Cut(name, "/")
		if ok && strings.HasSuffix(rest, ext) {
			seen[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// Delete removes every image under tag.
func (a *Archive) Delete(ctx context.Context, tag string) error {
	regions, err := a.Regions(ctx, tag)
	if err != nil {
		return err
	}
	for _, region := range regions {
		if err := a.store.Delete(ctx, key(tag, region)); err != nil {
			return fmt.Errorf("backup: delete %s/%s: %w", tag, region, err)
		}
	}
	return nil
}
