// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package level

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLevelStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TRACE", Trace.String())
	assert.Equal(t, "DEBUG", Debug.String())
	assert.Equal(t, "INFO", Info.String())
	assert.Equal(t, "WARN", Warn.String())
	assert.Equal(t, "ERROR", Error.String())
	assert.Equal(t, "OFF", Off.String())
	assert.Equal(t, "AUDIT", Audit.String())
	assert.Equal(t, "OPEN", Open.String())
	assert.Equal(t, "CLOSE", Close.String())
	assert.Equal(t, "Level(99)", Level(99).String())

	assert.Equal(t, Trace, LevelFromString("trace"))
	assert.Equal(t, Audit, LevelFromString(" Audit "))
	assert.Equal(t, Info, LevelFromString("INVALID"))

	_, err := ParseLevel("verbose")
	require.ErrorIs(t, err, ErrUnknownLevel)
}

func TestFilterAll(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		levels   []Level
		allowed  []Level
		rejected []Level
	}{
		"severity enables more severe levels": {
			levels:   []Level{Warn},
			allowed:  []Level{Warn, Error},
			rejected: []Level{Trace, Debug, Info, Audit, Open, Close},
		},
		"trace with audit and open": {
			levels:   []Level{Trace, Audit, Open},
			allowed:  []Level{Trace, Debug, Info, Warn, Error, Audit, Open, Close},
			rejected: []Level{Off},
		},
		"off enables nothing": {
			levels:   []Level{Off},
			rejected: []Level{Trace, Error, Audit, Open, Close, Off},
		},
		"audit only": {
			levels:   []Level{Audit},
			allowed:  []Level{Audit},
			rejected: []Level{Error, Open, Close},
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			filter := FilterAll(test.levels...)
			for _, l := range test.allowed {
				assert.True(t, filter.Allows(l), "expected %s to be allowed", l)
			}
			for _, l := range test.rejected {
				assert.False(t, filter.Allows(l), "expected %s to be rejected", l)
			}
		})
	}
}

func TestFilterHelpers(t *testing.T) {
	t.Parallel()

	filter := FilterAll(Error).Union(FilterAll(Open))
	assert.Equal(t, []Level{Error, Open, Close}, filter.Levels())
	assert.Equal(t, "ERROR,OPEN,CLOSE", filter.String())
	assert.Equal(t, "OFF", Filter(0).String())
	assert.True(t, Filter(0).IsEmpty())
	assert.False(t, filter.Allows(Level(42)))

	parsed, err := ParseFilter([]string{"info", "audit"})
	require.NoError(t, err)
	assert.Equal(t, FilterAll(Info, Audit), parsed)

	_, err = ParseFilter([]string{"info", "loud"})
	require.ErrorIs(t, err, ErrUnknownLevel)
}

func TestFilterUnmarshalYAML(t *testing.T) {
	t.Parallel()

	var out struct {
		Single Filter `yaml:"single"`
		List   Filter `yaml:"list"`
	}
	err := yaml.Unmarshal([]byte("single: warn\nlist: [debug, open]\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, FilterAll(Warn), out.Single)
	assert.Equal(t, FilterAll(Debug, Open), out.List)

	err = yaml.Unmarshal([]byte("single: nope\n"), &out)
	require.ErrorIs(t, err, ErrUnknownLevel)
}
