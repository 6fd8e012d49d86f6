package cmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evcharge/pkg/export"
)

func execute(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.Bytes()
}

func TestSimulateCSV(t *testing.T) {
	out := execute(t, "simulate", "--log-level", "error", "--hours", "1", "--arrival-soc", "50", "--departure-soc", "55")
	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Greater(t, len(rows), 1)
	assert.Equal(t, export.StepHeader, rows[0])
}

func TestProfilesJSON(t *testing.T) {
	out := execute(t, "profiles", "--log-level", "error", "--ev", "ld_100kWh", "--evse", "xfc_150")
	var dump profileDump
	require.NoError(t, json.Unmarshal(out, &dump))
	assert.Equal(t, "ld_100kWh", dump.EV.Type)
	assert.Len(t, dump.Transitions, 10)
	assert.NotEmpty(t, dump.Charging)
}

func TestFleetSummaryJSON(t *testing.T) {
	out := execute(t, "fleet", "--log-level", "error", "--size", "3", "--seed", "9", "--json")
	var s struct {
		Sessions int `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(out, &s))
	assert.Equal(t, 3, s.Sessions)
}
