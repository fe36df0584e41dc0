package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStrings(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Revision)
	assert.Equal(t, "CloudSync", AppName)

	assert.Equal(t, Version+" ("+Revision+")", Short())
	assert.True(t, strings.HasPrefix(ShortWithApp(), AppName+" "))
	assert.Contains(t, Detailed(), "/")
	assert.True(t, strings.HasPrefix(DetailedWithApp(), AppName+" "))
	assert.True(t, strings.HasPrefix(UserAgent(), "CloudSync/"+Version))
}

func restore(t *testing.T) {
	origVersion, origRevision, origBuildDate := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = origVersion, origRevision, origBuildDate
	})
}

func TestApplyBuildInfo(t *testing.T) {
	tests := []struct {
		name             string
		version          string
		revision         string
		buildDate        string
		mainVersion      string
		settings         map[string]string
		expectedVersion  string
		expectedRevision string
		expectedDate     string
	}{
		{
			name:        "dev build takes build info",
			version:     devVersion,
			revision:    "HEAD",
			mainVersion: "v9.9.9",
			settings: map[string]string{
				"vcs.revision": "abcdef1234567890",
				"vcs.modified": "true",
				"vcs.time":     "2025-12-12T01:00:00Z",
			},
			expectedVersion:  "9.9.9",
			expectedRevision: "abcdef123456-dirty",
			expectedDate:     "2025-12-12T01:00:00Z",
		},
		{
			name:             "ldflags win",
			version:          "1.2.3",
			revision:         "deadbeef",
			buildDate:        "from-ldflags",
			mainVersion:      "v9.9.9",
			settings:         map[string]string{"vcs.revision": "abcdef", "vcs.time": "2025-12-12T01:00:00Z"},
			expectedVersion:  "1.2.3",
			expectedRevision: "deadbeef",
			expectedDate:     "from-ldflags",
		},
		{
			name:             "devel main version is ignored",
			version:          devVersion,
			revision:         "HEAD",
			mainVersion:      "(devel)",
			settings:         map[string]string{},
			expectedVersion:  devVersion,
			expectedRevision: "HEAD",
			expectedDate:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore(t)
			Version, Revision, BuildDate = tt.version, tt.revision, tt.buildDate

			applyBuildInfo(tt.mainVersion, tt.settings)

			assert.Equal(t, tt.expectedVersion, Version)
			assert.Equal(t, tt.expectedRevision, Revision)
			assert.Equal(t, tt.expectedDate, BuildDate)
		})
	}
}
