// =================================================================
//
// Work of the U.S. Department of Defense, Defense Digital Service.
// Released as open source under the MIT License.  See LICENSE file.
//
// =================================================================

package s3fs

import (
	"fmt"
	"strings"
)

// Split splits the s3 path using "/", dropping empty segments.
func Split(p string) []string {
	dirs := []string{}
	d := []byte{}
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			if len(d) > 0 {
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

// ParseURI splits an s3://bucket/prefix locator into its bucket and key prefix.
// The returned prefix has no leading or trailing slash.
func ParseURI(uri string) (string, string, error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", fmt.Errorf("invalid s3 uri %q: missing s3:// scheme", uri)
	}
	parts := Split(strings.TrimPrefix(uri, "s3://"))
	if len(parts) == 0 {
		return "", "", fmt.Errorf("invalid s3 uri %q: missing bucket", uri)
	}
	return parts[0], strings.Join(parts[1:], "/"), nil
}
