// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package engine

import (
	"time"
)

const (
	DefaultSmallTime          = time.Second
	DefaultCheckpointInterval = 100 * time.Second
)

type Options struct {
	// SmallTime is the largest difference between two timestamps that are still considered equal.
	SmallTime time.Duration
	// IndexSizeThreshold limits markers to entries where either side is larger than the threshold.
	// Zero indexes every entry.
	IndexSizeThreshold int64
	// CheckpointInterval is the time between commits of the indexes during a run.
	CheckpointInterval time.Duration
	// PropagateDeletes removes entries deleted on one side since the last run instead of copying them back.
	PropagateDeletes bool
	// CacheStatus reuses the status of a directory for everything beneath it when no rule can change it.
	CacheStatus bool
	Clock       func() time.Time
}

func DefaultOptions() *Options {
	return &Options{
		SmallTime:          DefaultSmallTime,
		IndexSizeThreshold: 0,
		CheckpointInterval: DefaultCheckpointInterval,
		PropagateDeletes:   false,
		CacheStatus:        true,
		Clock:              time.Now,
	}
}
