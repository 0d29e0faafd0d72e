// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/navwar/bisync/pkg/engine"
	"github.com/navwar/bisync/pkg/index"
	"github.com/navwar/bisync/pkg/job"
	"github.com/navwar/bisync/pkg/rules"
)

// Store persists layers, jobs and their indexes in a SQLite database.
// Once bound to registries, Commit writes their current state.
type Store struct {
	db     *sqlx.DB
	path   string
	mutex  sync.Mutex
	layers *rules.Registry
	jobs   *job.Registry
}

// Open opens the database at the path, creating it and its parent directory if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("error creating directory for state database %q: %w", path, err)
	}
	db, err := sqlx.Connect(driverName, fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", path))
	if err != nil {
		return nil, fmt.Errorf("error connecting to state database %q: %w", path, err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(pragmas); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error setting pragmas for state database %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error initializing schema for state database %q: %w", path, err)
	}
	return &Store{
		db:   db,
		path: path,
	}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Bind sets the registries written by Commit.
func (s *Store) Bind(layers *rules.Registry, jobs *job.Registry) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.layers = layers
	s.jobs = jobs
}

// Load reads the registries from the database and binds them.
func (s *Store) Load(ctx context.Context) (*rules.Registry, *job.Registry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	layers := rules.NewRegistry()
	byName := map[string]*rules.Layer{}

	layerRows := []layerRow{}
	if err := s.db.SelectContext(ctx, &layerRows, "SELECT name, parent, default_status, position FROM layers ORDER BY position"); err != nil {
		return nil, nil, fmt.Errorf("error querying layers: %w", err)
	}
	for _, row := range layerRows {
		status, err := rules.ParseStatus(row.DefaultStatus)
		if err != nil {
			return nil, nil, fmt.Errorf("error parsing default status of layer %q: %w", row.Name, err)
		}
		var parent *rules.Layer
		if row.Parent != nil {
			parent = byName[*row.Parent]
			if parent == nil {
				return nil, nil, fmt.Errorf("error loading layer %q: parent layer %q not found", row.Name, *row.Parent)
			}
		}
		layer, err := layers.NewLayer(row.Name, status, parent)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading layer %q: %w", row.Name, err)
		}
		byName[row.Name] = layer
	}

	ruleRows := []ruleRow{}
	if err := s.db.SelectContext(ctx, &ruleRows, "SELECT layer, position, segments, status FROM rules ORDER BY layer, position"); err != nil {
		return nil, nil, fmt.Errorf("error querying rules: %w", err)
	}
	for _, row := range ruleRows {
		layer := byName[row.Layer]
		if layer == nil {
			return nil, nil, fmt.Errorf("error loading rule %s: layer %q not found", row.Segments, row.Layer)
		}
		segments, err := decodeSegments(row.Segments)
		if err != nil {
			return nil, nil, err
		}
		status, err := rules.ParseStatus(row.Status)
		if err != nil {
			return nil, nil, fmt.Errorf("error parsing status of rule %s in layer %q: %w", row.Segments, row.Layer, err)
		}
		if err := layer.SetRule(segments, status); err != nil {
			return nil, nil, fmt.Errorf("error loading rule %s in layer %q: %w", row.Segments, row.Layer, err)
		}
	}

	jobs := job.NewRegistry()
	jobRows := []jobRow{}
	if err := s.db.SelectContext(ctx, &jobRows, "SELECT name, source, destination, layer FROM jobs ORDER BY name"); err != nil {
		return nil, nil, fmt.Errorf("error querying jobs: %w", err)
	}
	for _, row := range jobRows {
		layer := byName[row.Layer]
		if layer == nil {
			return nil, nil, fmt.Errorf("error loading job %q: layer %q not found", row.Name, row.Layer)
		}
		if err := jobs.Add(job.New(row.Source, row.Destination, layer, row.Name)); err != nil {
			return nil, nil, fmt.Errorf("error loading job %q: %w", row.Name, err)
		}
	}

	markerRows := []markerRow{}
	if err := s.db.SelectContext(ctx, &markerRows, "SELECT job, side, segments, marker FROM markers"); err != nil {
		return nil, nil, fmt.Errorf("error querying markers: %w", err)
	}
	for _, row := range markerRows {
		j := jobs.Get(row.Job)
		if j == nil {
			continue
		}
		segments, err := decodeSegments(row.Segments)
		if err != nil {
			return nil, nil, err
		}
		switch row.Side {
		case sideSource:
			j.SourceIndex.Set(segments, time.Unix(0, row.Marker).UTC())
		case sideDestination:
			j.DestinationIndex.Set(segments, time.Unix(0, row.Marker).UTC())
		default:
			return nil, nil, fmt.Errorf("error loading marker of job %q: unknown side %q", row.Job, row.Side)
		}
	}

	s.layers = layers
	s.jobs = jobs
	return layers, jobs, nil
}

// Commit rewrites the bound registries and every job's indexes in a single transaction.
func (s *Store) Commit(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"layers", "rules", "jobs", "markers"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("error clearing %s: %w", table, err)
		}
	}

	if s.layers != nil {
		if err := insertLayers(ctx, tx, s.layers); err != nil {
			return err
		}
	}

	if s.jobs != nil {
		for _, j := range s.jobs.List() {
			_, err := tx.NamedExecContext(ctx,
				"INSERT INTO jobs (name, source, destination, layer) VALUES (:name, :source, :destination, :layer)",
				jobRow{Name: j.Name, Source: j.SourcePath, Destination: j.DestinationPath, Layer: j.Layer.Name()})
			if err != nil {
				return fmt.Errorf("error inserting job %q: %w", j.Name, err)
			}
			if err := insertMarkers(ctx, tx, j); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// JobCommitter returns a committer that rewrites only the indexes of the job,
// so jobs running concurrently never read each other's indexes.
func (s *Store) JobCommitter(j *job.Job) engine.Committer {
	return engine.CommitterFunc(func(ctx context.Context) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("error starting transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM markers WHERE job = ?", j.Name); err != nil {
			return fmt.Errorf("error clearing markers of job %q: %w", j.Name, err)
		}
		if err := insertMarkers(ctx, tx, j); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("error committing markers of job %q: %w", j.Name, err)
		}
		return nil
	})
}

func insertLayers(ctx context.Context, tx *sqlx.Tx, layers *rules.Registry) error {
	position := 0
	var err error
	layers.Walk(func(layer *rules.Layer) {
		if err != nil {
			return
		}
		row := layerRow{
			Name:          layer.Name(),
			DefaultStatus: layer.Default().String(),
			Position:      position,
		}
		if parent := layer.Parent(); parent != nil {
			name := parent.Name()
			row.Parent = &name
		}
		position++
		if _, insertErr := tx.NamedExecContext(ctx,
			"INSERT INTO layers (name, parent, default_status, position) VALUES (:name, :parent, :default_status, :position)",
			row); insertErr != nil {
			err = fmt.Errorf("error inserting layer %q: %w", layer.Name(), insertErr)
			return
		}
		for i, rule := range layer.Rules() {
			segments, encodeErr := encodeSegments(rule.Segments)
			if encodeErr != nil {
				err = encodeErr
				return
			}
			if _, insertErr := tx.NamedExecContext(ctx,
				"INSERT INTO rules (layer, position, segments, status) VALUES (:layer, :position, :segments, :status)",
				ruleRow{Layer: layer.Name(), Position: i, Segments: segments, Status: rule.Status.String()}); insertErr != nil {
				err = fmt.Errorf("error inserting rule %s in layer %q: %w", segments, layer.Name(), insertErr)
				return
			}
		}
	})
	return err
}

func insertMarkers(ctx context.Context, tx *sqlx.Tx, j *job.Job) error {
	stmt, err := tx.PreparexContext(ctx, "INSERT INTO markers (job, side, segments, marker) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("error preparing marker insert: %w", err)
	}
	defer stmt.Close()
	for side, i := range map[string]*index.Index{sideSource: j.SourceIndex, sideDestination: j.DestinationIndex} {
		err := i.Walk(func(segments []string, marker time.Time) error {
			str, err := encodeSegments(segments)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, j.Name, side, str, marker.UnixNano()); err != nil {
				return fmt.Errorf("error inserting %s marker %s of job %q: %w", side, str, j.Name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func encodeSegments(segments []string) (string, error) {
	b, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("error encoding path %q: %w", rules.FormatPath(segments), err)
	}
	return string(b), nil
}

func decodeSegments(str string) ([]string, error) {
	segments := []string{}
	if err := json.Unmarshal([]byte(str), &segments); err != nil {
		return nil, fmt.Errorf("error decoding path %s: %w", str, err)
	}
	return segments, nil
}

var _ engine.Committer = (*Store)(nil)
