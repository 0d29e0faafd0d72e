// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package engine

import (
	"context"
	"time"

	"github.com/navwar/bisync/pkg/fs"
	"github.com/navwar/bisync/pkg/rules"
)

// oneSided handles an entry that exists only on the side from.
func (r *run) oneSided(ctx context.Context, path []string, from *side, entry *fs.DirectoryEntry, resolution rules.Resolution) error {
	to := r.other(from)

	if entry.Type() == fs.TypeOther {
		r.skip(path, "unsupported entry type")
		return nil
	}

	switch resolution.Status {
	case rules.Stop:
		if r.remove(ctx, path, from, entry) {
			r.forget(path)
		}
		return nil
	case rules.Include:
		switch entry.Type() {
		case fs.TypeDirectory:
			if !r.mkdir(ctx, path, to, entry) {
				return nil
			}
			r.report.Copied++
			err := r.recurse(ctx, path, r.childCache(resolution))
			r.chmod(ctx, path, to, entry.Mode())
			return err
		default:
			if r.engine.options.PropagateDeletes && r.deletedFrom(path, from, entry) {
				if r.remove(ctx, path, from, entry) {
					r.forget(path)
				}
				return nil
			}
			if !r.copy(ctx, path, from, to, entry, entry.Mode()) {
				return nil
			}
			if entry.Type() == fs.TypeSymlink {
				r.report.Linked++
			} else {
				r.report.Copied++
			}
			if from == r.src {
				r.mark(ctx, path, entry, nil)
			} else {
				r.mark(ctx, path, nil, entry)
			}
			return nil
		}
	}

	// ignored directories are still walked when deeper rules exist
	if entry.IsDir() && resolution.Beneath {
		if !r.mkdir(ctx, path, to, entry) {
			return nil
		}
		return r.recurse(ctx, path, nil)
	}
	r.ignore(path)
	return nil
}

// twoSided handles an entry that exists on both sides.
func (r *run) twoSided(ctx context.Context, path []string, sourceEntry *fs.DirectoryEntry, destinationEntry *fs.DirectoryEntry, resolution rules.Resolution) error {
	if sourceEntry.Type() == fs.TypeOther || destinationEntry.Type() == fs.TypeOther {
		r.skip(path, "unsupported entry type")
		return nil
	}

	if resolution.Status == rules.Stop {
		removed := r.remove(ctx, path, r.src, sourceEntry)
		removed = r.remove(ctx, path, r.dst, destinationEntry) && removed
		if removed {
			r.forget(path)
		}
		return nil
	}

	if sourceEntry.Type() != destinationEntry.Type() {
		if resolution.Status != rules.Include {
			r.ignore(path)
			return nil
		}
		// the most recently modified entry replaces the other
		winner, winnerEntry, loser, loserEntry := r.src, sourceEntry, r.dst, destinationEntry
		if destinationEntry.ModTime().After(sourceEntry.ModTime()) && !fs.SmallTime(sourceEntry.ModTime(), destinationEntry.ModTime(), r.engine.options.SmallTime) {
			winner, winnerEntry, loser, loserEntry = r.dst, destinationEntry, r.src, sourceEntry
		}
		r.log(path, "replace", map[string]interface{}{
			"winner": string(winner.name),
			"type":   winnerEntry.Type().String(),
		})
		if !r.remove(ctx, path, loser, loserEntry) {
			return nil
		}
		r.forget(path)
		return r.oneSided(ctx, path, winner, winnerEntry, resolution)
	}

	if resolution.Status != rules.Include {
		if sourceEntry.IsDir() && resolution.Beneath {
			return r.recurse(ctx, path, nil)
		}
		r.ignore(path)
		return nil
	}

	switch sourceEntry.Type() {
	case fs.TypeDirectory:
		err := r.recurse(ctx, path, r.childCache(resolution))
		r.syncMode(ctx, path, sourceEntry, destinationEntry)
		return err
	case fs.TypeSymlink:
		r.updateLink(ctx, path, sourceEntry, destinationEntry)
	default:
		r.update(ctx, path, sourceEntry, destinationEntry)
		r.syncMode(ctx, path, sourceEntry, destinationEntry)
	}
	return nil
}

// markers returns the markers of both sides if the entry is indexed.
func (r *run) markers(path []string) (*time.Time, *time.Time) {
	var sourceMarker, destinationMarker *time.Time
	if t, ok := r.src.index.Get(path); ok {
		sourceMarker = &t
	}
	if t, ok := r.dst.index.Get(path); ok {
		destinationMarker = &t
	}
	return sourceMarker, destinationMarker
}

func (r *run) decide(path []string, sourceEntry *fs.DirectoryEntry, destinationEntry *fs.DirectoryEntry) (Direction, bool) {
	input := &DecideInput{
		SourceModTime:      sourceEntry.ModTime(),
		SourceSize:         sourceEntry.Size(),
		DestinationModTime: destinationEntry.ModTime(),
		DestinationSize:    destinationEntry.Size(),
		SmallTime:          r.engine.options.SmallTime,
	}
	indexed := r.indexed(sourceEntry, destinationEntry)
	if indexed {
		input.SourceMarker, input.DestinationMarker = r.markers(path)
	} else {
		r.forget(path)
	}
	direction := Decide(input)
	if direction != None {
		return direction, indexed
	}
	// nothing to copy, but the markers are refreshed unless both sides match them
	current := input.SourceMarker != nil &&
		input.DestinationMarker != nil &&
		fs.SmallTime(sourceEntry.ModTime(), *input.SourceMarker, input.SmallTime) &&
		fs.SmallTime(destinationEntry.ModTime(), *input.DestinationMarker, input.SmallTime)
	return None, indexed && !current
}

// update resolves a file present on both sides.
func (r *run) update(ctx context.Context, path []string, sourceEntry *fs.DirectoryEntry, destinationEntry *fs.DirectoryEntry) {
	direction, mark := r.decide(path, sourceEntry, destinationEntry)
	switch direction {
	case SourceToDestination:
		r.log(path, "update", map[string]interface{}{"direction": direction.String()})
		if !r.copy(ctx, path, r.src, r.dst, sourceEntry, destinationEntry.Mode()) {
			return
		}
		r.report.Updated++
		if mark {
			r.mark(ctx, path, sourceEntry, nil)
		}
	case DestinationToSource:
		r.log(path, "update", map[string]interface{}{"direction": direction.String()})
		if !r.copy(ctx, path, r.dst, r.src, destinationEntry, sourceEntry.Mode()) {
			return
		}
		r.report.Updated++
		if mark {
			r.mark(ctx, path, nil, destinationEntry)
		}
	default:
		r.report.Unchanged++
		if mark {
			r.mark(ctx, path, sourceEntry, destinationEntry)
		}
	}
}

// updateLink resolves a symlink present on both sides.  Links with the same target are left alone.
func (r *run) updateLink(ctx context.Context, path []string, sourceEntry *fs.DirectoryEntry, destinationEntry *fs.DirectoryEntry) {
	sourceTarget, err := r.src.fs.Readlink(ctx, r.name(r.src, path))
	if err != nil {
		r.fail(path, "readlink", r.src.name, err)
		return
	}
	destinationTarget, err := r.dst.fs.Readlink(ctx, r.name(r.dst, path))
	if err != nil {
		r.fail(path, "readlink", r.dst.name, err)
		return
	}
	if sourceTarget == destinationTarget {
		r.report.Unchanged++
		if r.indexed(sourceEntry, destinationEntry) {
			if sourceMarker, destinationMarker := r.markers(path); sourceMarker == nil || destinationMarker == nil {
				r.mark(ctx, path, sourceEntry, destinationEntry)
			}
		}
		return
	}
	direction, mark := r.decide(path, sourceEntry, destinationEntry)
	if direction == None {
		// same timestamps but different targets
		direction = SourceToDestination
		mark = r.indexed(sourceEntry, destinationEntry)
	}
	from, to, entry := r.src, r.dst, sourceEntry
	if direction == DestinationToSource {
		from, to, entry = r.dst, r.src, destinationEntry
	}
	r.log(path, "relink", map[string]interface{}{"direction": direction.String()})
	if err := to.fs.Remove(ctx, r.name(to, path)); err != nil {
		r.fail(path, "remove", to.name, err)
		return
	}
	if !r.copy(ctx, path, from, to, entry, entry.Mode()) {
		return
	}
	r.report.Updated++
	if mark {
		if from == r.src {
			r.mark(ctx, path, entry, nil)
		} else {
			r.mark(ctx, path, nil, entry)
		}
	}
}
