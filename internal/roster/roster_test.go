// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/content-aggregator/internal/harvest"
)

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesRoster(t *testing.T) {
	path := writeRoster(t, "First_name,Last_name,Title\nJane,Researcher,Dr\nJohn,Colleague,\n")

	got, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []harvest.Researcher{
		{FirstName: "Jane", LastName: "Researcher"},
		{FirstName: "John", LastName: "Colleague"},
	}, got)
}

func TestLoadSkipsMalformedRows(t *testing.T) {
	path := writeRoster(t, "first name,last name\nJane,Researcher\n,MissingFirst\nOnlyOneField\n  Spaced , Name \n")

	got, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []harvest.Researcher{
		{FirstName: "Jane", LastName: "Researcher"},
		{FirstName: "Spaced", LastName: "Name"},
	}, got)
}

func TestLoadRejectsMissingColumns(t *testing.T) {
	path := writeRoster(t, "name,email\nJane Researcher,jane@example.org\n")
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestLoadRejectsEmptyRoster(t *testing.T) {
	path := writeRoster(t, "First_name,Last_name\n\n")
	_, err := Load(path, nil)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"), nil)
	require.Error(t, err)
}
