// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aws/smithy-go/logging"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleLoggerJSONL(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewSimpleLogger(buf, FormatJSONL)
	require.NoError(t, err)

	require.NoError(t, logger.Log("Copied file", map[string]interface{}{"path": "/a.txt", "size": 5}))
	require.NoError(t, logger.Log("Error synchronizing entry", map[string]interface{}{"err": "boom"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	first := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "Copied file", first["msg"])
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "/a.txt", first["path"])
	assert.Equal(t, float64(5), first["size"])

	second := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "ERROR", second["level"])
	assert.Equal(t, "boom", second["err"])
}

func TestSimpleLoggerText(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewSimpleLogger(buf, FormatText)
	require.NoError(t, err)
	require.NoError(t, logger.Log("Done synchronizing", map[string]interface{}{"job": "home"}))
	assert.Contains(t, buf.String(), "Done synchronizing")
	assert.Contains(t, buf.String(), "job=home")
	// no color codes when not writing to a terminal
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestSimpleLoggerUnknownFormat(t *testing.T) {
	_, err := NewSimpleLogger(&bytes.Buffer{}, "xml")
	assert.Error(t, err)
}

func TestClientLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewSimpleLogger(buf, FormatJSONL)
	require.NoError(t, err)

	NewClientLogger(logger).Logf(logging.Debug, "Request\n%s", "GET /bucket HTTP/1.1")

	record := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "Request", record["msg"])
	assert.Equal(t, "GET /bucket HTTP/1.1", record["details"])
	assert.Equal(t, "DEBUG", record["classification"])
}
