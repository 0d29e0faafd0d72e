// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package lfs

import (
	"os"
)

// Split splits the path using the path separator for the local operating system.
// A leading separator is returned as its own element, and empty elements are dropped.
func Split(p string) []string {
	dirs := []string{}
	d := []byte{}
	for i := 0; i < len(p); i++ {
		if os.IsPathSeparator(p[i]) {
			if i == 0 {
				dirs = append(dirs, string(os.PathSeparator))
			} else if len(d) > 0 {
				dirs = append(dirs, string(d))
			}
			d = []byte{}
			continue
		}
		d = append(d, p[i])
	}
	if len(d) > 0 {
		dirs = append(dirs, string(d))
	}
	return dirs
}

// Segments returns the path elements below the root, i.e., without a leading separator.
func Segments(p string) []string {
	segments := Split(p)
	if len(segments) > 0 && segments[0] == string(os.PathSeparator) {
		return segments[1:]
	}
	return segments
}
