package nvram

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/nvram/backup"
	"github.com/hupe1980/nvram/blobstore"
	"golang.org/x/sync/errgroup"
)

// Backup saves the raw image of every region under tag. Each region is read
// under its own lock, so the images are individually consistent.
func (s *Store) Backup(ctx context.Context, archive *backup.Archive, tag string) error {
	rs := s.regions()
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rs {
		g.Go(func() error {
			img, err := r.ReadImage(gctx)
			if err != nil {
				return translateError(err)
			}
			return archive.Save(gctx, tag, r.Name(), img)
		})
	}
	err := g.Wait()
	s.logger.LogBackup(ctx, "backup", tag, len(rs), err)
	return err
}

// Restore programs the images saved under tag back onto the device and
// recovers each region from them. Every image is fetched and verified
// before the first region is touched. Regions missing from the archive
// keep their content; an archive without any image of this store fails
// with ErrNotFound.
func (s *Store) Restore(ctx context.Context, archive *backup.Archive, tag string) error {
	rs := s.regions()
	imgs := make([][]byte, len(rs))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range rs {
		g.Go(func() error {
			img, err := archive.Load(gctx, tag, r.Name())
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if uint32(len(img)) != r.Size() {
				return fmt.Errorf("%w: %s image is %d bytes, region is %d", ErrGeometry, r.Name(), len(img), r.Size())
			}
			imgs[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.LogBackup(ctx, "restore", tag, 0, err)
		return err
	}

	restored := 0
	for i, r := range rs {
		if imgs[i] == nil {
			continue
		}
		if err := r.WriteImage(ctx, imgs[i]); err != nil {
			err = translateError(err)
			s.logger.LogBackup(ctx, "restore", tag, restored, err)
			return err
		}
		restored++
	}
	if restored == 0 {
		err := fmt.Errorf("%w: no images under tag %q", ErrNotFound, tag)
		s.logger.LogBackup(ctx, "restore", tag, 0, err)
		return err
	}
	s.logger.LogBackup(ctx, "restore", tag, restored, nil)
	return nil
}
