package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/cloudsync/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func samplePlan() *sync.MapFolderResult {
	modified := time.Date(2023, 8, 5, 20, 14, 14, 0, time.UTC)
	result := sync.NewMapFolderResult()
	result.AddDownload(&sync.CloudFileMetadata{
		Name: "report.pdf", CloudPath: "/docs/report.pdf", ClientModified: modified,
		Size: 2048, ID: "id:abc", Parent: sync.CloudID{ID: "id:docs", CloudPath: "/docs"},
	})
	result.AddUpload(&sync.LocalFileMetadata{
		Name: "notes.txt", CloudPath: "/notes.txt", ClientModified: modified, Size: 10,
		FullPath: "/home/me/CloudSync/notes.txt", MimeType: "text/plain",
	})
	return result
}

func TestPlanText(t *testing.T) {
	result := samplePlan()
	result.AddConflict(&sync.Conflict{
		Local:      &sync.LocalFileMetadata{CloudPath: "/same.txt"},
		Cloud:      &sync.CloudFileMetadata{CloudPath: "/same.txt"},
		Comparison: sync.ComparisonDifByDate,
	})

	text := planText(result)

	assert.Contains(t, text, "Download 1 files (2.0 KiB)\n - /docs/report.pdf (2.0 KiB)\n")
	assert.Contains(t, text, "Upload 1 files (10 B)\n - /notes.txt (10 B)\n")
	assert.Contains(t, text, "Conflicts 1\n - /same.txt")
	assert.NotContains(t, text, "Failed")
}

func TestWritePlanJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writePlan(&out, formatJSON, samplePlan()))

	var decoded struct {
		Download []map[string]any `json:"download"`
		Upload   []map[string]any `json:"upload"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded.Download, 1)
	require.Len(t, decoded.Upload, 1)
	assert.Equal(t, "/docs/report.pdf", decoded.Download[0]["cloudPath"])
	assert.Equal(t, "2023-08-05T20:14:14Z", decoded.Download[0]["clientModified"])
	assert.Equal(t, "/notes.txt", decoded.Upload[0]["cloudPath"])
	assert.NotContains(t, out.String(), "conflicts")
}

func TestWritePlanYAMLKeepsFailures(t *testing.T) {
	result := samplePlan()
	result.AddFailed(&sync.FileError{CloudPath: "/broken.bin", Err: errors.New("read failed"), Message: "read failed"})

	var out bytes.Buffer
	require.NoError(t, writePlan(&out, formatYAML, result))

	var decoded map[string][]map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded["failed"], 1)
	assert.Equal(t, "/broken.bin", decoded["failed"][0]["cloudPath"])
	assert.Equal(t, "read failed", decoded["failed"][0]["error"])
}

func TestCheckFormat(t *testing.T) {
	for _, format := range []string{formatText, formatJSON, formatYAML} {
		assert.NoError(t, checkFormat(format))
	}
	assert.Error(t, checkFormat("xml"))
}
