package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
)

const atmRequest = `{
  "kernel": {"type": "black_scholes", "strike": 100},
  "params": {"spot": 100, "volatility": 0.2, "maturity": 1, "rate": 0.05},
  "sensitivities": ["delta", "gamma"]
}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCmdGreeks(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestComputeCommand(t *testing.T) {
	out, err := execute(t, atmRequest, "compute", "--log-level=error")
	require.NoError(t, err)

	var resp struct {
		RequestID string            `json:"request_id"`
		Result    domain.ResultWire `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.RequestID)
	require.NotNil(t, resp.Result.Delta)
	assert.InDelta(t, 0.6368, *resp.Result.Delta, 1e-3)
	require.NotNil(t, resp.Result.Gamma)
	assert.Equal(t, domain.MethodBump, resp.Result.Method)
}

func TestComputeCommandModeFlag(t *testing.T) {
	out, err := execute(t, atmRequest, "compute", "--mode=forward", "--indent=false", "--log-level=error")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1, "compact output is a single line")

	var resp struct {
		Result domain.ResultWire `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, domain.MethodForward, resp.Result.Method)
}

func TestVerifyCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verify.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "kernel": {"type": "bs", "strike": 100},
  "params": {"spot": 100, "volatility": 0.2, "maturity": 1, "rate": 0.05},
  "sensitivities": ["delta", "vega", "rho"]
}`), 0o600))

	out, err := execute(t, "", "verify", "-f", path, "--log-level=error")
	require.NoError(t, err)
	var resp struct {
		Report domain.VerificationReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Report.Passed)
	assert.Len(t, resp.Report.Entries, 3)
}

func TestPortfolioCommand(t *testing.T) {
	book := `{
  "run_id": "cli-run",
  "trades": [
    {"id": "c", "netting_set_id": "a", "kernel": {"strike": 100}, "params": {"spot": 100, "volatility": 0.2, "maturity": 1, "rate": 0.05}},
    {"id": "p", "netting_set_id": "a", "kernel": {"strike": 100, "put": true}, "params": {"spot": 100, "volatility": 0.2, "maturity": 1, "rate": 0.05}}
  ],
  "sensitivities": ["delta"]
}`
	out, err := execute(t, book, "portfolio", "--workers=2", "--log-level=error")
	require.NoError(t, err)

	var summary domain.PortfolioSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "cli-run", summary.RunID)
	assert.Equal(t, 2, summary.Completed)
}

func TestCommandErrors(t *testing.T) {
	_, err := execute(t, `{"kernel": {"strike": 100}, "bogus": 1}`, "compute", "--log-level=error")
	assert.ErrorContains(t, err, "decode request")

	_, err = execute(t, atmRequest, "compute", "--mode=symbolic", "--log-level=error")
	assert.ErrorIs(t, err, domain.ErrUnknownMethod)

	_, err = execute(t, atmRequest, "compute", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = execute(t, "", "serve", "extra-arg")
	assert.Error(t, err)
}
