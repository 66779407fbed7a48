//go:build !unix

package storage

import (
	"errors"
	"os"
)

func osMap(_ *os.File, _ int) ([]byte, func([]byte) error, error) {
	return nil, nil, errors.ErrUnsupported
}

func osSync(_ []byte) error { return nil }
