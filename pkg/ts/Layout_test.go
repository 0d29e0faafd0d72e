// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package ts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 30, 15, 0, time.UTC)
	assert.Equal(t, "Mar 05 14:30", ParseLayout("Default").Format(at, time.UTC))
	assert.Equal(t, "2024-03-05", ParseLayout("DateOnly").Format(at, nil))
	assert.Equal(t, "2024/03/05", ParseLayout("2006/01/02").Format(at, time.UTC))
	assert.Equal(t, Never, ParseLayout("Default").Format(time.Time{}, time.UTC))

	loc, err := ParseLocation("-5")
	require.NoError(t, err)
	assert.Equal(t, "09:30", ParseLayout("15:04").Format(at, loc))
}

func TestAge(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "3 minutes ago", Age(now.Add(-3*time.Minute), now))
	assert.Equal(t, Never, Age(time.Time{}, now))
}

func TestParseLocation(t *testing.T) {
	_, err := ParseLocation("")
	assert.Error(t, err)

	loc, err := ParseLocation("Local")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = ParseLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}
