package nvram

import (
	"errors"
	"fmt"

	"github.com/hupe1980/nvram/internal/region"
)

var (
	// ErrInvalidArgument is returned for empty or oversized names, oversized
	// values and empty read buffers.
	ErrInvalidArgument = errors.New("nvram: invalid argument")

	// ErrNotFound is returned when no region holds the key.
	ErrNotFound = errors.New("nvram: not found")

	// ErrNoSpace is returned when a value does not fit even after compaction.
	ErrNoSpace = errors.New("nvram: no space")

	// ErrPartitionNotFound is returned by Open when a required partition is
	// missing from the table.
	ErrPartitionNotFound = errors.New("nvram: partition not found")

	// ErrGeometry is returned when a partition does not fit the device or
	// the configured segment size.
	ErrGeometry = errors.New("nvram: invalid geometry")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, region.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, region.ErrInvalidArgument):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	case errors.Is(err, region.ErrNoSpace):
		return fmt.Errorf("%w: %w", ErrNoSpace, err)
	case errors.Is(err, region.ErrGeometry):
		return fmt.Errorf("%w: %w", ErrGeometry, err)
	}

	return err
}
