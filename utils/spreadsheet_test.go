package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatasetNormalizesHeader(t *testing.T) {
	ds, err := NewDataset([][]string{
		{" First_Name ", "LAST_NAME", "Email", ""},
		{"Juan", "Pérez", "juan@ejemplo.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"first_name", "last_name", "email"}, ds.Columns)
	assert.Equal(t, 1, ds.Len())
	assert.Empty(t, ds.MissingColumns("first_name", "last_name", "email"))
	assert.Equal(t, []string{"telefono"}, ds.MissingColumns("email", "telefono"))

	row := ds.Row(0)
	assert.Equal(t, "Juan", row["first_name"])
	assert.Equal(t, "juan@ejemplo.com", row["email"])
}

func TestNewDatasetRejectsEmptyFile(t *testing.T) {
	_, err := NewDataset(nil)
	assert.Error(t, err)
}

func TestDatasetToleratesRaggedRows(t *testing.T) {
	ds, err := NewDataset([][]string{
		{"first_name", "last_name", "email"},
		{"Juan"},
	})
	require.NoError(t, err)

	row := ds.Row(0)
	assert.Equal(t, "Juan", row["first_name"])
	// short rows simply leave the trailing columns absent
	_, ok := row["email"]
	assert.False(t, ok)
}

func TestReadDatasetFileCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usuarios.csv")
	content := "first_name,last_name,email\n" +
		"Juan,Pérez,juan@ejemplo.com\n" +
		"María,García,maria@ejemplo.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := ReadDatasetFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, "María", ds.Row(1)["first_name"])
}

func TestReadDatasetFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usuarios.txt")
	require.NoError(t, os.WriteFile(path, []byte("hola"), 0o644))

	_, err := ReadDatasetFile(path)
	assert.Error(t, err)
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	rows := [][]string{
		{"first_name", "last_name", "email"},
		{"Juan", "Pérez", "juan@ejemplo.com"},
		{"María", "García & Cía", "maria@ejemplo.com"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "Usuarios", rows))

	path := filepath.Join(t.TempDir(), "plantilla.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := ReadXLSXRows(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestReadXLSXRowsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roto.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a workbook"), 0o644))

	_, err := ReadXLSXRows(path)
	assert.Error(t, err)
}

func TestColumnIndexAndName(t *testing.T) {
	cases := map[string]int{
		"A1": 1, "B12": 2, "Z3": 26, "AA1": 27, "BC12": 55,
	}
	for ref, want := range cases {
		assert.Equal(t, want, columnIndex(ref), "ref %s", ref)
	}
	assert.Equal(t, 1, columnIndex("12"))

	for _, tc := range []struct {
		idx  int
		name string
	}{{1, "A"}, {26, "Z"}, {27, "AA"}, {55, "BC"}} {
		assert.Equal(t, tc.name, columnName(tc.idx))
	}
}
