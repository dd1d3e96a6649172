package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSkipsMissingFiles(t *testing.T) {
	assert.NoError(t, Load(filepath.Join(t.TempDir(), "nope.env")))
}

func TestLoadDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ENV_TEST_A=from-file\nENV_TEST_B=file-only\n"), 0o644))

	t.Setenv("ENV_TEST_A", "from-env")
	t.Cleanup(func() { os.Unsetenv("ENV_TEST_B") })

	require.NoError(t, Load(path))
	assert.Equal(t, "from-env", os.Getenv("ENV_TEST_A"))
	assert.Equal(t, "file-only", os.Getenv("ENV_TEST_B"))
}

func TestGetInt(t *testing.T) {
	t.Setenv("ENV_TEST_INT", "12")
	assert.Equal(t, 12, GetInt("ENV_TEST_INT", 3))
	t.Setenv("ENV_TEST_INT", "x")
	assert.Equal(t, 3, GetInt("ENV_TEST_INT", 3))
	assert.Equal(t, "d", Get("ENV_TEST_UNSET_KEY", "d"))
}
