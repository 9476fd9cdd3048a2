package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ecomgen/internal/audit"
	"github.com/roach88/ecomgen/internal/export"
	"github.com/roach88/ecomgen/internal/generr"
	"github.com/roach88/ecomgen/internal/model"
)

const smallConfig = `
seed: 99
simulation:
  workers: 2
lookup:
  customers:
    count: 60
    guest_contact_pool_size: 5
  products:
    per_category: 4
validation:
  min_segment_size: 10
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ecomgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

// execute runs the root command and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerate_WritesExports(t *testing.T) {
	cfgPath := writeConfig(t, smallConfig)
	outDir := t.TempDir()

	stdout, err := execute(t, "generate", "--config", cfgPath, "--out", outDir, "--formats", "csv,sql")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Audit (lenient)")
	assert.Contains(t, stdout, "✓ Dataset")
	for _, s := range model.Schemas {
		assert.FileExists(t, filepath.Join(outDir, export.CSVName(s.Name)))
	}
	assert.FileExists(t, filepath.Join(outDir, export.LoadScriptName))
}

func TestGenerate_JSONIsReproducible(t *testing.T) {
	cfgPath := writeConfig(t, smallConfig)

	run := func() GenerateResult {
		stdout, err := execute(t, "generate", "--config", cfgPath, "--out", t.TempDir(), "--format", "json", "--messiness", "light_mess")
		require.NoError(t, err)

		var resp struct {
			Status string         `json:"status"`
			Data   GenerateResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
		require.Equal(t, "ok", resp.Status)
		return resp.Data
	}

	a, b := run(), run()
	assert.Equal(t, a.Digest, b.Digest)
	assert.Equal(t, a.RunID, b.RunID)
	assert.Equal(t, "light_mess", a.Messiness)
	assert.Equal(t, 60, a.Counts[model.TableCustomers])
}

func TestGenerate_RunIDIndependentOfWorkersAndOutput(t *testing.T) {
	cfgPath := writeConfig(t, smallConfig)

	run := func(workers string) GenerateResult {
		stdout, err := execute(t, "generate", "--config", cfgPath, "--out", t.TempDir(), "--format", "json", "--workers", workers)
		require.NoError(t, err)
		var resp struct {
			Data GenerateResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
		return resp.Data
	}

	a, b := run("1"), run("4")
	assert.Equal(t, a.RunID, b.RunID)
	assert.Equal(t, a.ConfigDigest, b.ConfigDigest)
	assert.Equal(t, a.Digest, b.Digest)
}

func TestGenerate_SeedFlagOverridesConfig(t *testing.T) {
	cfgPath := writeConfig(t, smallConfig)

	digest := func(args ...string) string {
		args = append([]string{"generate", "--config", cfgPath, "--out", t.TempDir(), "--format", "json"}, args...)
		stdout, err := execute(t, args...)
		require.NoError(t, err)
		var resp struct {
			Data GenerateResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
		return resp.Data.Digest
	}

	assert.NotEqual(t, digest(), digest("--seed", "100"))
	assert.Equal(t, digest("--seed", "99"), digest())

	t.Setenv(EnvSeed, "100")
	assert.Equal(t, digest("--seed", "100"), digest())
}

func TestGenerate_InvalidConfigExitsTwo(t *testing.T) {
	cfgPath := writeConfig(t, "parameters:\n  conversion_rate: 1.5\n")

	stdout, err := execute(t, "generate", "--config", cfgPath, "--out", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, generr.IsConfigurationError(err))
	assert.Contains(t, stdout, "Error [CONFIGURATION]")
}

func TestGenerate_UnknownMessinessExitsTwo(t *testing.T) {
	cfgPath := writeConfig(t, smallConfig)

	_, err := execute(t, "generate", "--config", cfgPath, "--out", t.TempDir(), "--messiness", "filthy")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGenerate_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "generate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, err := execute(t, "validate", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_Defaults(t *testing.T) {
	stdout, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Configuration valid")
}

func TestValidate_AuditJSON(t *testing.T) {
	cfgPath := writeConfig(t, smallConfig)

	stdout, err := execute(t, "validate", "--config", cfgPath, "--audit", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Report)
	assert.NotEmpty(t, resp.Data.Report.Checks)
	assert.NotEmpty(t, resp.Data.Report.RunID)
}

func TestValidate_LintWarnings(t *testing.T) {
	cfgPath := writeConfig(t, "parameters:\n  shipping_speed_distribution: {Standard: 2, Expedited: 1}\n")

	stdout, err := execute(t, "validate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "parameters.shipping_speed_distribution")
	assert.Contains(t, stdout, "✓ Configuration valid")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "audit failed", errors.New("x"))))
	assert.Equal(t, ExitCommandError, GetExitCode(generr.NewConfigurationError("seed", "negative")))
	assert.Equal(t, ExitFailure, GetExitCode(&generr.IntegrityError{Checks: []string{"order_arithmetic"}}))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
}

func TestExitError_Unwrap(t *testing.T) {
	inner := &generr.IntegrityError{Checks: []string{"cart_totals"}}
	err := WrapExitError(ExitFailure, "audit failed", inner)

	assert.True(t, generr.IsIntegrityError(err))
	assert.Equal(t, "audit failed: "+inner.Error(), err.Error())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("INTEGRITY", "audit failed", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTEGRITY", resp.Error.Code)
}

func TestRenderReport_Golden(t *testing.T) {
	r := &audit.Report{
		RunID: "2b0c7f4e-8d0a-5c61-9a0e-6f1d3c2b9e47",
		Checks: []audit.CheckResult{
			{Name: "primary_key/customers(customer_id)", Class: audit.Deterministic, Status: audit.StatusPass, Message: "60 distinct keys"},
			{Name: "order_arithmetic", Class: audit.Deterministic, Status: audit.StatusFail, Message: "1 violation(s): ORD-CUST-00001-001 net 9.99 != gross 10.00 - discount 0.00"},
			{Name: "conversion_rate", Class: audit.Statistical, Status: audit.StatusWarn, Message: "observed 0.1200 expected 0.0800 ±0.0200 over 500 carts"},
			{Name: "repeat_rate/Website/Gold", Class: audit.Statistical, Status: audit.StatusPass, Message: "skipped: 4 visits (minimum 30)"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, r))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report", buf.Bytes())
}
