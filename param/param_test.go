package param

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate(), "The default configuration should be trainable as is")
}

func TestPatchSizeRounds(t *testing.T) {
	f := Default()
	assert.Equal(t, 25, f.PatchSize(), "A 100px face at ratio 0.25 should yield 25px patches")

	f.FaceSize = 90
	assert.Equal(t, 23, f.PatchSize(), "22.5px should round up to 23px")
}

func TestValidateRejectsBadConfigurations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Forest)
	}{
		{"negative max depth", func(f *Forest) { f.MaxDepth = -1 }},
		{"negative min patches", func(f *Forest) { f.MinPatches = -1 }},
		{"zero test count", func(f *Forest) { f.NTests = 0 }},
		{"zero tree count", func(f *Forest) { f.NTrees = 0 }},
		{"zero face size", func(f *Forest) { f.FaceSize = 0 }},
		{"ratio above one", func(f *Forest) { f.PatchSizeRatio = 1.5 }},
		{"ratio yielding empty patches", func(f *Forest) { f.FaceSize = 2; f.PatchSizeRatio = 0.1 }},
		{"no feature channels", func(f *Forest) { f.Features = nil }},
	}
	for _, c := range cases {
		f := Default()
		c.mutate(&f)
		assert.Error(t, f.Validate(), "Validate should reject a configuration with %s", c.name)
	}
}

func TestReadKeepsDefaultsForOmittedFields(t *testing.T) {
	doc := []byte("max_depth: 3\nntrees: 2\nfeatures: [0]\n")

	f, err := Read(doc)

	require.NoError(t, err)
	assert.Equal(t, 3, f.MaxDepth, "Stated fields should take the document's value")
	assert.Equal(t, 2, f.NTrees, "Stated fields should take the document's value")
	assert.Equal(t, []int{0}, f.Features, "A stated feature list should replace the default one")
	assert.Equal(t, Default().NTests, f.NTests, "Omitted fields should keep their default")
	assert.Equal(t, Default().TreePath, f.TreePath, "Omitted fields should keep their default")
}

func TestReadRejectsMalformedDocuments(t *testing.T) {
	_, err := Read([]byte("max_depth: [broken"))
	assert.Error(t, err, "Malformed YAML should be rejected")

	_, err = Read([]byte("max_depth: deep"))
	assert.Error(t, err, "Values of the wrong type should be rejected")
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forest.yml")
	require.NoError(t, os.WriteFile(path, []byte("face_size: 80\npatch_size_ratio: 0.5\n"), 0644))

	f, err := ReadFile(path)

	require.NoError(t, err)
	assert.Equal(t, 40, f.PatchSize(), "The configuration should come from the file")
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err, "An unreadable file should be reported")
}
