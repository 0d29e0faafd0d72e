// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package engine

import (
	"context"
	"errors"
	"os"

	"github.com/navwar/bisync/pkg/fs"
	"github.com/navwar/bisync/pkg/rules"
)

// copy writes the entry from one side onto the other.  Files are created with
// mode and keep the modification time of the entry.
func (r *run) copy(ctx context.Context, path []string, from *side, to *side, entry *fs.DirectoryEntry, mode os.FileMode) bool {
	name := r.name(to, path)
	if entry.Type() == fs.TypeSymlink {
		if !to.fs.SupportsSymlinks() {
			r.skip(path, "symlinks are not supported on "+string(to.name))
			return false
		}
		target, err := from.fs.Readlink(ctx, r.name(from, path))
		if err != nil {
			r.fail(path, "readlink", from.name, err)
			return false
		}
		r.log(path, "link", map[string]interface{}{"target": target, "side": string(to.name)})
		if err := to.fs.Symlink(ctx, target, name); err != nil {
			r.fail(path, "link", to.name, err)
			return false
		}
		return true
	}

	var logger fs.Logger
	if r.verbose {
		logger = r.engine.logger
	}
	written, err := fs.Copy(ctx, &fs.CopyInput{
		SourceName:            r.name(from, path),
		SourceFileSystem:      from.fs,
		DestinationName:       name,
		DestinationFileSystem: to.fs,
		Mode:                  mode,
		ModTime:               entry.ModTime(),
		Logger:                logger,
	})
	if err != nil {
		r.fail(path, "copy", to.name, err)
		return false
	}
	r.report.Bytes += written
	// the created file is subject to the umask
	if from.fs.SupportsPermissions() && to.fs.SupportsPermissions() {
		if err := to.fs.Chmod(ctx, name, mode); err != nil {
			r.fail(path, "chmod", to.name, err)
		}
	}
	return true
}

// mkdir creates the directory on the side.  It stays writable until chmod is called.
func (r *run) mkdir(ctx context.Context, path []string, to *side, entry *fs.DirectoryEntry) bool {
	r.log(path, "mkdir", map[string]interface{}{"side": string(to.name)})
	if err := to.fs.MkdirAll(ctx, r.name(to, path), entry.Mode()|0700); err != nil {
		r.fail(path, "mkdir", to.name, err)
		return false
	}
	return true
}

// chmod sets the mode of a directory created by mkdir.
func (r *run) chmod(ctx context.Context, path []string, to *side, mode os.FileMode) {
	if !to.fs.SupportsPermissions() || !r.other(to).fs.SupportsPermissions() {
		return
	}
	if err := to.fs.Chmod(ctx, r.name(to, path), mode); err != nil {
		r.fail(path, "chmod", to.name, err)
	}
}

// syncMode sets the mode of the destination to the mode of the source.
func (r *run) syncMode(ctx context.Context, path []string, sourceEntry *fs.DirectoryEntry, destinationEntry *fs.DirectoryEntry) {
	if !r.src.fs.SupportsPermissions() || !r.dst.fs.SupportsPermissions() {
		return
	}
	if sourceEntry.Mode() == destinationEntry.Mode() {
		return
	}
	r.log(path, "chmod", map[string]interface{}{
		"from": destinationEntry.Mode().String(),
		"to":   sourceEntry.Mode().String(),
	})
	if err := r.dst.fs.Chmod(ctx, r.name(r.dst, path), sourceEntry.Mode()); err != nil {
		r.fail(path, "chmod", r.dst.name, err)
		return
	}
	r.report.Chmodded++
}

func (r *run) remove(ctx context.Context, path []string, s *side, entry *fs.DirectoryEntry) bool {
	r.log(path, "remove", map[string]interface{}{"side": string(s.name)})
	var err error
	if entry.IsDir() {
		err = s.fs.RemoveAll(ctx, r.name(s, path))
	} else {
		err = s.fs.Remove(ctx, r.name(s, path))
	}
	if err != nil && !s.fs.IsNotExist(err) {
		r.fail(path, "remove", s.name, err)
		return false
	}
	r.report.Removed++
	return true
}

// forget removes the markers of the path and everything beneath it on both sides.
func (r *run) forget(path []string) {
	r.src.index.Delete(path)
	r.dst.index.Delete(path)
}

func (r *run) indexed(sourceEntry *fs.DirectoryEntry, destinationEntry *fs.DirectoryEntry) bool {
	threshold := r.engine.options.IndexSizeThreshold
	return threshold <= 0 || sourceEntry.Size() > threshold || destinationEntry.Size() > threshold
}

// mark records the modification time of both sides as synchronized.  A nil entry is
// read again from its side, since the side was just written.
func (r *run) mark(ctx context.Context, path []string, sourceEntry *fs.DirectoryEntry, destinationEntry *fs.DirectoryEntry) {
	var err error
	if sourceEntry == nil {
		if sourceEntry, err = r.src.fs.Lstat(ctx, r.name(r.src, path)); err != nil {
			r.fail(path, "stat", r.src.name, err)
			return
		}
	}
	if destinationEntry == nil {
		if destinationEntry, err = r.dst.fs.Lstat(ctx, r.name(r.dst, path)); err != nil {
			r.fail(path, "stat", r.dst.name, err)
			return
		}
	}
	if !r.indexed(sourceEntry, destinationEntry) {
		r.forget(path)
		return
	}
	r.src.index.Set(path, sourceEntry.ModTime())
	r.dst.index.Set(path, destinationEntry.ModTime())
}

// deletedFrom returns true if the entry was synchronized and has not changed since,
// so it must have been deleted from the other side.
func (r *run) deletedFrom(path []string, from *side, entry *fs.DirectoryEntry) bool {
	marker, ok := from.index.Get(path)
	if !ok {
		return false
	}
	if _, ok := r.other(from).index.Get(path); !ok {
		return false
	}
	return fs.SmallTime(entry.ModTime(), marker, r.engine.options.SmallTime)
}

func (r *run) fail(path []string, op string, s Side, err error) {
	r.record(&EntryError{Path: rules.FormatPath(path), Op: op, Side: s, Err: err})
}

func (r *run) record(entryError *EntryError) {
	r.report.Errors = append(r.report.Errors, entryError)
	fields := map[string]interface{}{
		"job":  r.job.Name,
		"path": entryError.Path,
		"op":   entryError.Op,
		"side": string(entryError.Side),
		"err":  entryError.Err.Error(),
	}
	if errors.Is(entryError.Err, fs.ErrNotSupported) {
		fields["unsupported"] = true
	}
	_ = r.engine.logger.Log("Error synchronizing entry", fields)
}

func (r *run) skip(path []string, reason string) {
	r.report.Skipped++
	r.log(path, "skip", map[string]interface{}{"reason": reason})
}

func (r *run) ignore(path []string) {
	r.report.Ignored++
	r.log(path, "ignore")
}

func (r *run) log(path []string, action string, fields ...map[string]interface{}) {
	if !r.verbose {
		return
	}
	m := map[string]interface{}{
		"job":    r.job.Name,
		"path":   rules.FormatPath(path),
		"action": action,
	}
	for _, f := range fields {
		for k, v := range f {
			m[k] = v
		}
	}
	_ = r.engine.logger.Log("Object", m)
}
