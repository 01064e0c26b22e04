//go:build !linux && !windows && !darwin

package osthread

import "errors"

func ID() (uint64, error) {
	return 0, errors.ErrUnsupported
}
