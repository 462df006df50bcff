// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/planpilot-cli/internal/config"
	"github.com/xkilldash9x/planpilot-cli/internal/observability"
)

// resetForTest clears state shared by the cobra/viper singletons so tests do
// not leak into each other.
func resetForTest(t *testing.T) {
	t.Helper()

	viper.Reset()
	viper.SetConfigName("a-config-file-that-does-not-exist")
	cfgFile = ""
	cfg = nil

	// Cobra's auto-generated --version flag keeps its Changed state on the
	// shared rootCmd between Execute calls; clear it so a prior test's
	// --version does not leak into this one.
	if f := rootCmd.Flags().Lookup("version"); f != nil {
		_ = f.Value.Set("false")
		f.Changed = false
	}

	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
}

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--version"})

	err := rootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	resetForTest(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{})

	err := rootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Planpilot executes declarative browser automation plans.")
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["run"], "run subcommand must be registered")
	assert.True(t, names["serve"], "serve subcommand must be registered")
}

func TestRunCmd_MissingPlanFile(t *testing.T) {
	resetForTest(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"run", filepath.Join(t.TempDir(), "no-such-plan.json")})

	err := rootCmd.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read plan file")
}

func TestRunCmd_MalformedPlan(t *testing.T) {
	resetForTest(t)

	planPath := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(planPath, []byte(`{"goal": `), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"run", planPath})

	err := rootCmd.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed plan document")
}
