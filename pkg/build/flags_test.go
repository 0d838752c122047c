// SPDX-License-Identifier: MIT
package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withLinkerValues sets the ldflags variables and a fresh default
// buildFlags for one test, restoring both afterwards.
func withLinkerValues(t *testing.T, name, time, commit, version string) {
	t.Helper()
	saved := []string{buildName, buildTime, buildCommit, buildVersion}
	savedFlags := buildFlags
	t.Cleanup(func() {
		buildName, buildTime, buildCommit, buildVersion = saved[0], saved[1], saved[2], saved[3]
		buildFlags = savedFlags
	})

	buildName, buildTime, buildCommit, buildVersion = name, time, commit, version
	buildFlags = &ldFlags{
		Name:        "audioroute",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

func TestDevelopmentDefaults(t *testing.T) {
	flags := GetBuildFlags()
	assert.Equal(t, "audioroute", flags.Name)
	assert.Equal(t, description, flags.Description)
	assert.NotEmpty(t, flags.Description, "cobra uses it as the short help")
}

func TestInitializeRequiresEveryValue(t *testing.T) {
	tests := []struct {
		name                         string
		bName, bTime, bCommit, bVers string
		wantErr                      string
	}{
		{"No Name", "", "2025-04-13", "abcdef1", "v0.3.0", "BuildName is required"},
		{"No Time", "audioroute", "", "abcdef1", "v0.3.0", "BuildTime is required"},
		{"No Commit", "audioroute", "2025-04-13", "", "v0.3.0", "BuildCommit is required"},
		{"No Version", "audioroute", "2025-04-13", "abcdef1", "", "BuildVersion is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withLinkerValues(t, tt.bName, tt.bTime, tt.bCommit, tt.bVers)

			assert.EqualError(t, Initialize(), tt.wantErr)
			// A development build keeps its defaults.
			assert.Equal(t, "audioroute dev (commit unknown, built unknown)", GetBuildFlags().String())
		})
	}
}

func TestInitializeKeepsDescription(t *testing.T) {
	withLinkerValues(t, "audioroute-pi", "2025-04-13T10:00:00Z", "abcdef1", "v0.3.0")

	require.NoError(t, Initialize())
	flags := GetBuildFlags()
	assert.Equal(t, "audioroute-pi", flags.Name)
	assert.Equal(t, "v0.3.0", flags.Version)
	assert.Equal(t, description, flags.Description, "not set by ldflags")
	assert.Equal(t, "audioroute-pi v0.3.0 (commit abcdef1, built 2025-04-13T10:00:00Z)", flags.String())
}
