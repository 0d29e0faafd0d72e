// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package job

import (
	"github.com/google/uuid"

	"github.com/navwar/bisync/pkg/index"
	"github.com/navwar/bisync/pkg/rules"
)

// Job binds a source and destination locator to a rule layer and the
// synchronization index of each side.  The layer is shared and never owned by a job.
type Job struct {
	Name             string
	SourcePath       string
	DestinationPath  string
	Layer            *rules.Layer
	SourceIndex      *index.Index
	DestinationIndex *index.Index
}

// New returns a job with empty indexes.  A random name is generated if name is empty.
func New(sourcePath string, destinationPath string, layer *rules.Layer, name string) *Job {
	if len(name) == 0 {
		name = uuid.New().String()
	}
	return &Job{
		Name:             name,
		SourcePath:       sourcePath,
		DestinationPath:  destinationPath,
		Layer:            layer,
		SourceIndex:      index.New(),
		DestinationIndex: index.New(),
	}
}

// ClearIndexes forgets every synchronized marker on both sides.
func (j *Job) ClearIndexes() {
	j.SourceIndex.Clear()
	j.DestinationIndex.Clear()
}
