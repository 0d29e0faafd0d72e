// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package rules

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultRegexCacheSize = 256
)

type segmentKind int

const (
	literalSegment segmentKind = iota
	// anchoredSegment is written {regex} and matches exactly one path segment.
	anchoredSegment
	// substringSegment is written |regex| and matches against the remaining joined path.
	substringSegment
)

// compiled regular expressions are shared by every tree in the process
var regexCache *lru.Cache[string, *regexp.Regexp]

func init() {
	c, err := lru.New[string, *regexp.Regexp](defaultRegexCacheSize)
	if err != nil {
		panic(err)
	}
	regexCache = c
}

func compile(expr string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Get(expr); ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	regexCache.Add(expr, re)
	return re, nil
}

func parseSegment(segment string) (segmentKind, string) {
	if len(segment) >= 3 {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			return anchoredSegment, segment[1 : len(segment)-1]
		}
		if strings.HasPrefix(segment, "|") && strings.HasSuffix(segment, "|") {
			return substringSegment, segment[1 : len(segment)-1]
		}
	}
	return literalSegment, segment
}

// compileSegment returns the kind of the segment and the expression used to match it.
func compileSegment(segment string) (segmentKind, *regexp.Regexp, error) {
	kind, expr := parseSegment(segment)
	switch kind {
	case anchoredSegment:
		re, err := compile("^(?:" + expr + ")$")
		if err != nil {
			return kind, nil, fmt.Errorf("error compiling segment %q: %w", segment, err)
		}
		return kind, re, nil
	case substringSegment:
		re, err := compile("(?:" + expr + ")/?$")
		if err != nil {
			return kind, nil, fmt.Errorf("error compiling segment %q: %w", segment, err)
		}
		return kind, re, nil
	}
	return kind, nil, nil
}

// splitSubstring returns the number of leading segments consumed by a substring segment,
// or zero if it does not match.  The match must leave at least one segment behind.
func splitSubstring(re *regexp.Regexp, segments []string) int {
	head := ""
	for i := 1; i < len(segments); i++ {
		head += segments[i-1] + "/"
		if re.MatchString(head) {
			return i
		}
	}
	return 0
}

// ParsePath splits a rule path on "/" while keeping {regex} and |regex| segments intact.
func ParsePath(p string) []string {
	segments := []string{}
	for i := 0; i < len(p); {
		if p[i] == '/' {
			i++
			continue
		}
		if c := p[i]; c == '{' || c == '|' {
			closer := byte('}')
			if c == '|' {
				closer = '|'
			}
			end := -1
			for j := i + 1; j < len(p); j++ {
				if p[j] == closer && (j+1 == len(p) || p[j+1] == '/') && j-i >= 2 {
					end = j
					break
				}
			}
			if end != -1 {
				segments = append(segments, p[i:end+1])
				i = end + 1
				continue
			}
		}
		j := strings.IndexByte(p[i:], '/')
		if j == -1 {
			segments = append(segments, p[i:])
			break
		}
		segments = append(segments, p[i:i+j])
		i += j
	}
	return segments
}

// FormatPath joins rule path segments with "/".
func FormatPath(segments []string) string {
	return strings.Join(segments, "/")
}
