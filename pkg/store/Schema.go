// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package store

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const driverName = "sqlite3"

const pragmas = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
`

// Layers are stored in pre-order so a parent always precedes its children.
// Segments are JSON arrays, since a pattern segment may contain a slash.
const schema = `
CREATE TABLE IF NOT EXISTS layers (
    name TEXT PRIMARY KEY,
    parent TEXT,
    default_status TEXT NOT NULL,
    position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rules (
    layer TEXT NOT NULL,
    position INTEGER NOT NULL,
    segments TEXT NOT NULL,
    status TEXT NOT NULL,
    PRIMARY KEY (layer, position)
);

CREATE TABLE IF NOT EXISTS jobs (
    name TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    destination TEXT NOT NULL,
    layer TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS markers (
    job TEXT NOT NULL,
    side TEXT NOT NULL,
    segments TEXT NOT NULL,
    marker INTEGER NOT NULL, -- unix nanoseconds
    PRIMARY KEY (job, side, segments)
);
`

const (
	sideSource      = "source"
	sideDestination = "destination"
)

type layerRow struct {
	Name          string  `db:"name"`
	Parent        *string `db:"parent"`
	DefaultStatus string  `db:"default_status"`
	Position      int     `db:"position"`
}

type ruleRow struct {
	Layer    string `db:"layer"`
	Position int    `db:"position"`
	Segments string `db:"segments"`
	Status   string `db:"status"`
}

type jobRow struct {
	Name        string `db:"name"`
	Source      string `db:"source"`
	Destination string `db:"destination"`
	Layer       string `db:"layer"`
}

type markerRow struct {
	Job      string `db:"job"`
	Side     string `db:"side"`
	Segments string `db:"segments"`
	Marker   int64  `db:"marker"`
}
