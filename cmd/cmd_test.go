package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-container/cmd"
)

// run executes containerctl with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runContext(t, context.Background(), args...)
}

func runContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"CONTAINER_MANIFEST", "CONTAINER_WATCH", "LOG_LEVEL", "CONFIG_FILE", "INSPECT_TOKEN", "APP_PORT"} {
		t.Setenv(k, "")
	}
	t.Setenv("APP_ENV", "testing")

	var out bytes.Buffer
	root := cmd.NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--env-file=" + filepath.Join(t.TempDir(), "none.env")}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestKeys(t *testing.T) {
	out, err := run(t, "keys", "--manifest", "testdata/services.yaml")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	for _, key := range []string{"app.name", "config", "configuration", "greeting", "name", "retries"} {
		assert.Contains(t, lines, key)
	}
}

func TestKeys_Prefix(t *testing.T) {
	out, err := run(t, "keys", "-m", "testdata/services.yaml", "--prefix", "app.")
	require.NoError(t, err)
	assert.Equal(t, "app.name\n", out)
}

func TestGet_YAML(t *testing.T) {
	out, err := run(t, "get", "name", "-m", "testdata/services.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "key: name\n")
	assert.Contains(t, out, "canonical: app.name\n")
	assert.Contains(t, out, "protected: true\n")
	assert.Contains(t, out, "type: string\n")
	assert.Contains(t, out, "value: demo\n")
}

func TestGet_JSON(t *testing.T) {
	out, err := run(t, "get", "retries", "-m", "testdata/services.yaml", "-o", "json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "retries", got["key"])
	assert.Equal(t, "int", got["type"])
	assert.Equal(t, "3", got["value"])
	assert.Equal(t, false, got["shared"])
}

func TestGet_Errors(t *testing.T) {
	_, err := run(t, "get", "missing")
	assert.ErrorContains(t, err, "missing")

	_, err = run(t, "get", "config", "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output format")

	_, err = run(t, "get")
	assert.Error(t, err)
}

func TestTagged(t *testing.T) {
	out, err := run(t, "tagged", "words", "-m", "testdata/services.yaml")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"KEY", "TYPE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"app.name", "string"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"greeting", "string"}, strings.Fields(lines[2]))
}

func TestTagged_Unknown(t *testing.T) {
	out, err := run(t, "tagged", "nothing")
	require.NoError(t, err)
	assert.Equal(t, "KEY  TYPE\n", out)
}

func TestValidate(t *testing.T) {
	out, err := run(t, "validate", "testdata/services.yaml")
	require.NoError(t, err)
	assert.Equal(t, "testdata/services.yaml: ok (3 services, 1 aliases, 1 tags)\n", out)

	_, err = run(t, "validate", "testdata/invalid.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "services[0]")
	assert.Contains(t, err.Error(), "[both] has both a value and a class")
	assert.Contains(t, err.Error(), "aliases.self")
}

func TestManifestFlagMissingFile(t *testing.T) {
	_, err := run(t, "keys", "-m", "testdata/nope.yaml")
	assert.Error(t, err)
}

func TestServe_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runContext(t, ctx, "serve", "--port", "0", "-m", "testdata/services.yaml")
	assert.NoError(t, err)
}
