// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package job

import (
	"github.com/navwar/bisync/pkg/rules"
)

// Registry holds jobs in the order they were added.  Job names are unique.
type Registry struct {
	jobs []*Job
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: []*Job{},
	}
}

func (r *Registry) Add(j *Job) error {
	if j == nil || len(j.Name) == 0 {
		return &rules.ConfigurationError{Name: "", Reason: "jobs must have a name"}
	}
	if r.Get(j.Name) != nil {
		return &rules.ConfigurationError{Name: j.Name, Reason: "a job with the same name already exists"}
	}
	r.jobs = append(r.jobs, j)
	return nil
}

// Remove removes the job with the given name and returns it, or nil if no job has the name.
func (r *Registry) Remove(name string) *Job {
	for i, j := range r.jobs {
		if j.Name == name {
			r.jobs = append(r.jobs[:i:i], r.jobs[i+1:]...)
			return j
		}
	}
	return nil
}

func (r *Registry) Get(name string) *Job {
	for _, j := range r.jobs {
		if j.Name == name {
			return j
		}
	}
	return nil
}

func (r *Registry) List() []*Job {
	return append([]*Job{}, r.jobs...)
}

func (r *Registry) Len() int {
	return len(r.jobs)
}

// UsingLayer returns the jobs bound to the layer or to any layer beneath it.
func (r *Registry) UsingLayer(layer *rules.Layer) []*Job {
	jobs := []*Job{}
	for _, j := range r.jobs {
		for l := j.Layer; l != nil; l = l.Parent() {
			if l == layer {
				jobs = append(jobs, j)
				break
			}
		}
	}
	return jobs
}
