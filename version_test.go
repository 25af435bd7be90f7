package agentflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion_PopulatesEveryField(t *testing.T) {
	info := GetVersion()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, BuildDate, info.BuildDate)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Platform)
}

func TestInfo_StringIncludesVersionAndPlatform(t *testing.T) {
	s := GetVersion().String()
	assert.Contains(t, s, "agentflow")
	assert.Contains(t, s, Version)
	assert.Contains(t, s, GitCommit)
}
