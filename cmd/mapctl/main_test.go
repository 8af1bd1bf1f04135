package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDistanceAndBearing(t *testing.T) {
	out, err := run(t, "distance", "0,0", "0,1")
	require.NoError(t, err)
	assert.Equal(t, "111194.9\n", out)

	out, err = run(t, "bearing", "0,0", "1,0")
	require.NoError(t, err)
	assert.Equal(t, "0.00\n", out)
}

func TestProject(t *testing.T) {
	out, err := run(t, "project", "14.5,121", "--bearing", "90", "--distance", "0")
	require.NoError(t, err)
	assert.Equal(t, "14.500000,121.000000\n", out)
}

func TestRing(t *testing.T) {
	out, err := run(t, "ring", "1,1", "0,0", "0,1", "1,0", "0.5,0.5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{
		"0.000000,0.000000",
		"0.000000,1.000000",
		"1.000000,1.000000",
		"1.000000,0.000000",
		"0.000000,0.000000",
	}, lines)

	_, err = run(t, "ring", "--mode", "spline", "0,0", "0,1", "1,1")
	assert.Error(t, err)
}

func TestKML(t *testing.T) {
	out, err := run(t, "kml", "--name", "Stops", "14.5,121")
	require.NoError(t, err)
	assert.Contains(t, out, "<name>Stops</name>")
	assert.Equal(t, 1, strings.Count(out, "<Placemark>"))
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint(" 14.5, 121.25")
	require.NoError(t, err)
	assert.Equal(t, 14.5, p.Latitude)
	assert.Equal(t, 121.25, p.Longitude)

	for _, bad := range []string{"14.5", "abc,1", "1,abc", "91,0"} {
		_, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}
