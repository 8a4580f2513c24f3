//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/lsearch/internal/errors"
)

// openNoFollow opens an import file read-only. O_NOFOLLOW does not exist
// on Windows, so symlinks are rejected with Lstat instead.
func openNoFollow(path string) (*os.File, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("cannot read from symlink")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return f, nil
}
