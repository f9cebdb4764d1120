package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/cloudmigrate/internal/storage"
	"github.com/andresuchdata/cloudmigrate/internal/transfer"
)

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	err := app.Run([]string{"migrate", "generate", "--count", "3", "--count", "5", "--seed", "7", "--out", dir})
	require.NoError(t, err)

	for _, n := range []int{3, 5} {
		path := filepath.Join(dir, fmt.Sprintf("email_sample_%d.csv", n))
		assert.Contains(t, out.String(), path)

		f, err := os.Open(path)
		require.NoError(t, err)
		rows, err := csv.NewReader(f).ReadAll()
		f.Close()
		require.NoError(t, err)
		assert.Len(t, rows, n+1)
		assert.Equal(t, "Id", rows[0][0])
	}
}

func TestUploadCommand_RequiresPath(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run([]string{"migrate", "upload"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing local path")
}

func TestPrintObjects(t *testing.T) {
	objects := []storage.ObjectInfo{
		{Key: "a.csv", Size: 3 * 1024 * 1024, ContentType: "text/csv", Created: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "b.bin", Size: 10},
	}

	var plain bytes.Buffer
	printObjects(&plain, objects, false)
	assert.Equal(t, "a.csv\nb.bin\n", plain.String())

	var detailed bytes.Buffer
	printObjects(&detailed, objects, true)
	lines := strings.Split(strings.TrimSpace(detailed.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "SIZE (MB)")
	assert.Contains(t, lines[1], "3.0 MiB")
	assert.Contains(t, lines[1], "3.00")
	assert.Contains(t, lines[1], "2024-05-01T00:00:00Z")
	assert.Contains(t, lines[2], "10 B")
}

func TestPrintReport(t *testing.T) {
	report := &transfer.Report{
		Total: 3, Succeeded: 2, Failed: 1,
		Outcomes: []transfer.Outcome{
			{Source: "a.txt", Status: transfer.StatusSuccess},
			{Source: "missing.txt", Status: transfer.StatusFailure, Error: "storage: not found", Kind: storage.KindNotFound},
			{Source: "b.txt", Status: transfer.StatusSuccess},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, "Migration", report)

	assert.Equal(t,
		"Migration completed: 2 successful, 1 failed out of 3 files.\n"+
			"  failed: missing.txt (not_found): storage: not found\n",
		buf.String())
}
