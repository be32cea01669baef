package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDotEnv(t *testing.T) {
	doc := `
# target credentials
PGPASSWORD=s3cret
export DUCKPIPE_HISTORY_DB="runs/history.sqlite"
DUCKPIPE_MEMORY_LIMIT=4GB # shared host
QUOTED_HASH='a #literal'
ESCAPED="line1\nline2"
not-a-pair
EMPTY=
`
	got, err := ParseDotEnv(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, [][2]string{
		{"PGPASSWORD", "s3cret"},
		{"DUCKPIPE_HISTORY_DB", "runs/history.sqlite"},
		{"DUCKPIPE_MEMORY_LIMIT", "4GB"},
		{"QUOTED_HASH", "a #literal"},
		{"ESCAPED", "line1\nline2"},
		{"EMPTY", ""},
	}, got)
}

func TestParseDotEnv_Errors(t *testing.T) {
	_, err := ParseDotEnv(strings.NewReader("OK=1\n=orphan\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParseDotEnv(strings.NewReader(`BAD="\q"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD")
}

func TestLoadDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DUCKPIPE_T1=from_file\nDUCKPIPE_T2=from_file\nexport DUCKPIPE_T3=\"a b\"\n"), 0o600))
	t.Setenv("DUCKPIPE_T1", "from_env")
	t.Setenv("DUCKPIPE_T2", "")
	t.Setenv("DUCKPIPE_T3", "")

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from_env", os.Getenv("DUCKPIPE_T1"), "environment wins")
	assert.Equal(t, "from_file", os.Getenv("DUCKPIPE_T2"))
	assert.Equal(t, "a b", os.Getenv("DUCKPIPE_T3"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
