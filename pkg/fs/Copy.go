// =================================================================
//
// Work of the U.S. Department of Defense, Defense Digital Service.
// Released as open source under the MIT License.  See LICENSE file.
//
// =================================================================

package fs

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// Copy copies a file between file systems and returns the number of bytes written.
func Copy(ctx context.Context, input *CopyInput) (int64, error) {
	sourceName := input.SourceName
	destinationName := input.DestinationName
	destinationFileSystem := input.DestinationFileSystem

	if input.Logger != nil {
		_ = input.Logger.Log("Copying file", map[string]interface{}{
			"src": input.SourceFileSystem.Join(input.SourceFileSystem.Root(), sourceName),
			"dst": destinationFileSystem.Join(destinationFileSystem.Root(), destinationName),
		})
	}

	// check parent directory and create it if allowed
	if input.MakeParents {
		parent := destinationFileSystem.Dir(destinationName)
		if err := destinationFileSystem.MkdirAll(ctx, parent, 0755); err != nil {
			return 0, fmt.Errorf("error creating parent directories for %q: %w", destinationName, err)
		}
	}

	// open source file
	sourceFile, err := input.SourceFileSystem.Open(ctx, sourceName)
	if err != nil {
		return 0, fmt.Errorf("error opening source file at %q: %w", sourceName, err)
	}

	mode := input.Mode
	if mode == 0 {
		mode = 0644
	}

	// open destination file
	destinationFile, err := destinationFileSystem.Create(ctx, destinationName, mode)
	if err != nil {
		_ = sourceFile.Close() // silently close source file
		return 0, fmt.Errorf("error creating destination file at %q: %w", destinationName, err)
	}

	// copy bytes from source to destination
	written, err := io.Copy(destinationFile, sourceFile)
	if err != nil {
		_ = sourceFile.Close()      // silently close source file
		_ = destinationFile.Close() // silently close destination file
		return 0, fmt.Errorf("error copying from %q to %q: %w", sourceName, destinationName, err)
	}

	err = sourceFile.Close()
	if err != nil {
		_ = destinationFile.Close() // silently close destination file
		return 0, fmt.Errorf("error closing source file after copying: %w", err)
	}

	err = destinationFile.Close()
	if err != nil {
		return 0, fmt.Errorf("error closing destination file after copying: %w", err)
	}

	// preserve modification time
	if !input.ModTime.IsZero() {
		if err := destinationFileSystem.Chtimes(ctx, destinationName, input.ModTime); err != nil {
			return 0, fmt.Errorf("error changing timestamps for %q after copying: %w", destinationName, err)
		}
	}

	if input.Logger != nil {
		_ = input.Logger.Log("Done copying file", map[string]interface{}{
			"src":     sourceName,
			"dst":     destinationName,
			"written": humanize.Bytes(uint64(written)),
		})
	}

	return written, nil
}
