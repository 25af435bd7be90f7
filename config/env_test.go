package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	require.NoError(t, os.Setenv("AGENTFLOW_TEST_VAR", "hello"))
	t.Cleanup(func() { os.Unsetenv("AGENTFLOW_TEST_VAR") })

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"braced", "${AGENTFLOW_TEST_VAR}", "hello"},
		{"bare", "$AGENTFLOW_TEST_VAR", "hello"},
		{"defaulted uses value when set", "${AGENTFLOW_TEST_VAR:-fallback}", "hello"},
		{"defaulted uses default when unset", "${AGENTFLOW_TEST_MISSING:-fallback}", "fallback"},
		{"no reference passes through", "plain string", "plain string"},
		{"mixed", "prefix-${AGENTFLOW_TEST_VAR}-suffix", "prefix-hello-suffix"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, expandEnvVars(tc.in))
		})
	}
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("FALSE"))
	assert.Equal(t, int64(42), parseValue("42"))
	assert.Equal(t, 3.14, parseValue("3.14"))
	assert.Equal(t, "not-a-number", parseValue("not-a-number"))
}

func TestExpandEnvVarsInData(t *testing.T) {
	require.NoError(t, os.Setenv("AGENTFLOW_TEST_PORT", "8080"))
	t.Cleanup(func() { os.Unsetenv("AGENTFLOW_TEST_PORT") })

	data := map[string]interface{}{
		"server": map[string]interface{}{
			"addr": "${AGENTFLOW_TEST_PORT}",
			"tags": []interface{}{"a", "${AGENTFLOW_TEST_VAR_UNSET:-default-tag}"},
		},
	}

	out := expandEnvVarsInData(data).(map[string]interface{})
	server := out["server"].(map[string]interface{})
	assert.Equal(t, int64(8080), server["addr"])
	tags := server["tags"].([]interface{})
	assert.Equal(t, "a", tags[0])
	assert.Equal(t, "default-tag", tags[1])
}

func TestLoadEnvFiles_MissingFilesAreNotErrors(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, loadEnvFiles(dir))
}

func TestLoadEnvFiles_LoadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/.env", []byte("AGENTFLOW_TEST_FROM_FILE=loaded\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("AGENTFLOW_TEST_FROM_FILE") })

	require.NoError(t, loadEnvFiles(dir))
	assert.Equal(t, "loaded", os.Getenv("AGENTFLOW_TEST_FROM_FILE"))
}
