package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectVersionIsLexical(t *testing.T) {
	paths := []string{
		"/resources/mylib/1.0/",
		"/resources/mylib/1.10/",
		"/resources/mylib/1.2/",
	}
	v := SelectVersion(paths, "", false, ".xhtml", nil)
	require.NotNil(t, v)
	assert.Equal(t, "1.2", v.Version)

	// Order of the listing does not matter.
	reversed := []string{paths[2], paths[1], paths[0]}
	assert.Equal(t, "1.2", SelectVersion(reversed, "", false, ".xhtml", nil).Version)
}

func TestSelectVersionForLibraries(t *testing.T) {
	paths := []string{
		"/resources/mylib/2_0/",
		"/resources/mylib/3.0.xhtml/",
		"/resources/mylib/9.9",
		"/resources/mylib/beta/",
	}
	v := SelectVersion(paths, "", false, ".xhtml", nil)
	require.NotNil(t, v)
	assert.Equal(t, "2_0", v.Version)
	assert.Empty(t, v.Extension)
}

func TestSelectVersionForResources(t *testing.T) {
	paths := []string{
		"/resources/mylib/1.0/style.css/1_1.css",
		"/resources/mylib/1.0/style.css/1_3.css",
		"/resources/mylib/1.0/style.css/2_0.js",
		"/resources/mylib/1.0/style.css/3_0/",
	}
	v := SelectVersion(paths, "css", true, "", nil)
	require.NotNil(t, v)
	assert.Equal(t, "1_3", v.Version)
	assert.Equal(t, "css", v.Extension)
	assert.Equal(t, "1_3.css", v.String())
}

func TestSelectVersionForResourcesWithoutExtension(t *testing.T) {
	v := SelectVersion([]string{"/resources/LICENSE/1.0", "/resources/LICENSE/notes"}, "", true, "", nil)
	require.NotNil(t, v)
	assert.Equal(t, "1.0", v.String())
}

func TestSelectVersionNoCandidates(t *testing.T) {
	assert.Nil(t, SelectVersion(nil, "", false, ".xhtml", nil))
	assert.Nil(t, SelectVersion([]string{"/resources/mylib/images/"}, "", false, ".xhtml", nil))
}

func TestSemverMaxDiffersFromLexical(t *testing.T) {
	candidates := []*VersionInfo{{Version: "1.0"}, {Version: "1.2"}, {Version: "1.10"}}
	sv := semverMax(candidates)
	require.NotNil(t, sv)
	assert.Equal(t, "1.10", sv.Version)
}
