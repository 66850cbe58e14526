package stats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeYAMLHasDocumentHeader(t *testing.T) {
	doc, err := EncodeYAML(JobDoc{ID: 1, Tube: "default", State: "ready"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(doc), "---\n"))
	assert.Contains(t, string(doc), "id: 1")
	assert.Contains(t, string(doc), "tube: default")
}

func TestEncodeYAMLListIsSequence(t *testing.T) {
	doc, err := EncodeYAML(List{"default", "jobs"})
	require.NoError(t, err)
	s := string(doc)
	assert.True(t, strings.HasPrefix(s, "---\n"))
	assert.Contains(t, s, "- default")
	assert.Contains(t, s, "- jobs")
}

func TestEncodeYAMLGlobalFieldNamesHyphenated(t *testing.T) {
	doc, err := EncodeYAML(Global{CurrentJobsReady: 3, CmdPut: 5})
	require.NoError(t, err)
	s := string(doc)
	assert.Contains(t, s, "current-jobs-ready: 3")
	assert.Contains(t, s, "cmd-put: 5")
}
