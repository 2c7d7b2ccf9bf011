package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendigo/internal/core"
	"spendigo/internal/ledger"
)

// withLedgerDir points every run at the same on-disk snapshot store.
func withLedgerDir(t *testing.T) {
	t.Helper()
	t.Setenv("SPENDIGO_CONFIG", "")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("DATA_DIRECTORY", t.TempDir())
	t.Setenv("LLM_API_KEY", "")
	t.Setenv(UserEnv, "ctl-user")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSourcesSeededAndListed(t *testing.T) {
	withLedgerDir(t)

	out, err := run(t, "", "sources")
	require.NoError(t, err)
	assert.Contains(t, out, ledger.DefaultCashID)
	assert.Contains(t, out, "Bank Account")
	assert.Contains(t, out, "EMPTY")

	out, err = run(t, "", "sources", "--json")
	require.NoError(t, err)
	var sources []core.PaymentSource
	require.NoError(t, json.Unmarshal([]byte(out), &sources))
	assert.Len(t, sources, 3)
}

func TestDepositAddEditDeleteVerify(t *testing.T) {
	withLedgerDir(t)

	_, err := run(t, "", "deposit", ledger.DefaultCashID, "1,000")
	require.NoError(t, err)

	out, err := run(t, "", "add", "--json", "-a", "250", "-v", "Cafe", "-c", "Food & Drink", "-s", ledger.DefaultCashID, "-d", "2025-06-24")
	require.NoError(t, err)
	var commit ledger.Commit
	require.NoError(t, json.Unmarshal([]byte(out), &commit))
	assert.Equal(t, core.Rupees(250), commit.Expense.Amount)
	id := commit.Expense.ID

	_, err = run(t, "", "edit", jsonID(id), "--amount", "100", "--source", ledger.DefaultUPIID)
	require.NoError(t, err)

	out, err = run(t, "", "sources", "--json")
	require.NoError(t, err)
	var sources []core.PaymentSource
	require.NoError(t, json.Unmarshal([]byte(out), &sources))
	balances := map[string]core.Money{}
	for _, s := range sources {
		balances[s.ID] = s.CurrentBalance
	}
	assert.Equal(t, core.Rupees(1000), balances[ledger.DefaultCashID])
	assert.Equal(t, core.Rupees(-100), balances[ledger.DefaultUPIID])

	out, err = run(t, "", "list", "-s", ledger.DefaultUPIID)
	require.NoError(t, err)
	assert.Contains(t, out, "Cafe")

	out, err = run(t, "", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "no drift")

	_, err = run(t, "", "delete", jsonID(id))
	require.NoError(t, err)
	_, err = run(t, "", "delete", jsonID(id))
	assert.ErrorIs(t, err, core.ErrExpenseNotFound)
}

func TestEditRequiresAField(t *testing.T) {
	withLedgerDir(t)

	_, err := run(t, "", "edit", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")
}

func TestAddRejectsBadInput(t *testing.T) {
	withLedgerDir(t)

	_, err := run(t, "", "add", "-a", "0", "-s", ledger.DefaultCashID)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = run(t, "", "add", "-a", "1,50", "-s", ledger.DefaultCashID)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = run(t, "", "add", "-a", "10", "-s", "nope")
	assert.ErrorIs(t, err, core.ErrSourceNotFound)
}

func TestSourceAddAndDeactivate(t *testing.T) {
	withLedgerDir(t)

	out, err := run(t, "", "sources", "add", "--json", "--type", "bank", "--name", "Savings", "--initial", "500")
	require.NoError(t, err)
	var src core.PaymentSource
	require.NoError(t, json.Unmarshal([]byte(out), &src))
	assert.Equal(t, core.Rupees(500), src.CurrentBalance)

	_, err = run(t, "", "sources", "deactivate", src.ID)
	require.NoError(t, err)

	out, err = run(t, "", "sources")
	require.NoError(t, err)
	assert.NotContains(t, out, "Savings")
	out, err = run(t, "", "sources", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Savings")
}

func TestVoiceFromStdin(t *testing.T) {
	withLedgerDir(t)

	out, err := run(t, "spent 250 rupees\non coffee using cash\n", "voice", "--json", "--commit")
	require.NoError(t, err)

	var result struct {
		Extraction struct {
			Transcript string     `json:"transcript"`
			Path       string     `json:"path"`
			Amount     core.Money `json:"amount"`
		} `json:"extraction"`
		Commit *ledger.Commit `json:"commit"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "spent 250 rupees on coffee using cash", result.Extraction.Transcript)
	assert.Equal(t, "fallback", result.Extraction.Path)
	assert.Equal(t, core.Rupees(250), result.Extraction.Amount)
	require.NotNil(t, result.Commit)
	assert.True(t, result.Commit.Expense.IsVoiceInput)
	assert.Equal(t, ledger.DefaultCashID, result.Commit.Expense.SourceID)
}

func TestVoiceEmptyStdin(t *testing.T) {
	withLedgerDir(t)

	_, err := run(t, "\n\n", "voice")
	require.Error(t, err)
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
