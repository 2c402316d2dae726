package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRejectsInvalidAndEmpty(t *testing.T) {
	_, err := Compile("(unclosed")
	require.Error(t, err)

	_, err = Compile("")
	require.Error(t, err)
}

func TestMatchAndReplace(t *testing.T) {
	re, err := Compile(`^github-`)
	require.NoError(t, err)

	assert.True(t, re.MatchString("github-香港节点-01"))
	assert.False(t, re.MatchString("gitlab-香港节点-01"))

	out, ok := re.ReplaceAll("github-香港节点-01", "")
	assert.True(t, ok)
	assert.Equal(t, "香港节点-01", out)
}

func TestReplaceCaptureGroups(t *testing.T) {
	re, err := Compile(`(\w+)-(\d+)`)
	require.NoError(t, err)

	out, ok := re.ReplaceAll("hk-01 jp-02", "$2_$1")
	assert.True(t, ok)
	assert.Equal(t, "01_hk 02_jp", out)
}

func TestLookaroundSupported(t *testing.T) {
	re, err := Compile(`^(?!.*过期).*香港`)
	require.NoError(t, err)

	assert.True(t, re.MatchString("香港 01"))
	assert.False(t, re.MatchString("香港 过期"))
}

func TestNilRegexIsInert(t *testing.T) {
	var re *Regex
	assert.False(t, re.MatchString("anything"))
	out, ok := re.ReplaceAll("keep", "x")
	assert.False(t, ok)
	assert.Equal(t, "keep", out)
}
