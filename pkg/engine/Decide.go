// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package engine

import (
	"time"

	"github.com/navwar/bisync/pkg/fs"
)

type Direction int

const (
	None Direction = iota
	SourceToDestination
	DestinationToSource
)

func (d Direction) String() string {
	switch d {
	case SourceToDestination:
		return "source->destination"
	case DestinationToSource:
		return "destination->source"
	}
	return "none"
}

type DecideInput struct {
	SourceModTime      time.Time
	SourceSize         int64
	SourceMarker       *time.Time
	DestinationModTime time.Time
	DestinationSize    int64
	DestinationMarker  *time.Time
	SmallTime          time.Duration
}

// Decide returns the direction to copy an entry present on both sides.
// Without both markers the most recently modified side wins.  With both markers
// only the side that changed since its marker is copied, and the most recently
// modified side wins when both changed.
func Decide(input *DecideInput) Direction {
	if input.SourceMarker == nil || input.DestinationMarker == nil {
		return mostRecent(input)
	}
	sourceChanged := !fs.SmallTime(input.SourceModTime, *input.SourceMarker, input.SmallTime)
	destinationChanged := !fs.SmallTime(input.DestinationModTime, *input.DestinationMarker, input.SmallTime)
	switch {
	case !sourceChanged && !destinationChanged:
		return None
	case sourceChanged && !destinationChanged:
		return SourceToDestination
	case !sourceChanged && destinationChanged:
		return DestinationToSource
	}
	return mostRecent(input)
}

func mostRecent(input *DecideInput) Direction {
	if fs.SmallTime(input.SourceModTime, input.DestinationModTime, input.SmallTime) {
		if input.SourceSize == input.DestinationSize {
			return None
		}
		return SourceToDestination
	}
	if input.SourceModTime.After(input.DestinationModTime) {
		return SourceToDestination
	}
	return DestinationToSource
}
