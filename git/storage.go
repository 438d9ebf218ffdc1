package git

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// newStorage creates object storage over a git directory with an LRU object
// cache of megabytes.
func newStorage(dotGit billy.Filesystem, megabytes int) *filesystem.Storage {
	if megabytes <= 0 {
		megabytes = DefaultStorerCacheSize
	}
	return filesystem.NewStorage(dotGit, cache.NewObjectLRU(cache.FileSize(megabytes)*cache.MiByte))
}
