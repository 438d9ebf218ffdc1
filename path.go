package filedevice

import (
	"path"
	"strings"
)

// CleanPath normalises a device path to the slash separated, root relative form
// backends address files by. Backslashes are treated as separators and ".."
// cannot climb above the root.
func CleanPath(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}
