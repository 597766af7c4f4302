package console

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledger/internal/app/ledger"
	"ledger/internal/app/reports"
	"ledger/internal/repository/memory"
)

func init() {
	color.NoColor = true
}

func newConsole(input string, out *bytes.Buffer) *Console {
	store := memory.NewStore(time.Second)
	svc := ledger.NewLedgerService(store, nil, 0, zap.NewNop())
	return New(svc, reports.NewReportService(store, nil, nil, zap.NewNop()), strings.NewReader(input), out, zap.NewNop())
}

func run(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, newConsole(input, &out).Run(context.Background()))
	return out.String()
}

func TestConsoleSession(t *testing.T) {
	out := run(t, strings.Join([]string{
		"add-user", "Alice", "alice@x.com",
		"add-user", "Bob", "bob@x.com",
		"create-account", "1", "100.00",
		"deposit", "1", "50",
		"withdraw", "1", "200",
		"balance", "1",
		"withdraw", "1", "150",
		"accounts",
		"exit",
	}, "\n"))

	assert.Contains(t, out, "User added successfully. (ID: 1)")
	assert.Contains(t, out, "Account created successfully. (ID: 1)")
	assert.Contains(t, out, "Deposit successful. New balance: 150.00")
	assert.Contains(t, out, "Insufficient balance.")
	assert.Contains(t, out, "Balance: 150.00")
	assert.Contains(t, out, "Withdrawal successful. New balance: 0.00")
	assert.Contains(t, out, "User ID: 1, Name: Alice, Email: alice@x.com, Account ID: 1, Balance: 0.00\n")
	assert.Contains(t, out, "User ID: 2, Name: Bob, Email: bob@x.com, Account ID: None, Balance: None\n")
	assert.True(t, strings.HasSuffix(out, "Exiting...\n"))
}

func TestConsoleInputErrors(t *testing.T) {
	out := run(t, strings.Join([]string{
		"7",
		"deposit", "abc", "10",
		"deposit", "1", "ten",
		"withdraw", "9", "5",
		"create-account", "x",
		"create-account", "1", "-3",
		"create-account", "1", "5",
		"deposit", "1", "0",
		"add-user", "", "a@x.com",
	}, "\n"))

	assert.Contains(t, out, "Invalid option.")
	assert.Equal(t, 2, strings.Count(out, "Invalid account ID or amount."))
	assert.Contains(t, out, "Account not found.")
	assert.Contains(t, out, "Invalid user ID.")
	assert.Contains(t, out, "Error creating account: invalid initial_balance: must not be negative.")
	assert.Contains(t, out, "Amount must be positive with at most two decimal places.")
	assert.Contains(t, out, "Error adding user: invalid name: must not be empty.")
}

func TestConsoleStopsAtEndOfInput(t *testing.T) {
	out := run(t, "add-user\nAlice")
	assert.NotContains(t, out, "User added successfully.")
}

func TestConsoleHelpListsCommands(t *testing.T) {
	out := run(t, "help\nexit\n")
	for _, name := range []string{"add-user", "create-account", "deposit", "withdraw", "balance", "accounts", "help", "exit"} {
		assert.Contains(t, out, name)
	}
}

func TestConsoleEchoesScriptedInput(t *testing.T) {
	var out bytes.Buffer
	c := newConsole("add-user\nAlice\nalice@x.com\nexit\n", &out)
	c.SetEcho(true)
	require.NoError(t, c.Run(context.Background()))

	assert.Contains(t, out.String(), "Enter name: Alice\n")
	assert.Contains(t, out.String(), "Enter email: alice@x.com\nUser added successfully. (ID: 1)\n")
}

func TestConsoleColorsOutcomes(t *testing.T) {
	if os.Getenv("NO_COLOR") != "" {
		t.Skip("NO_COLOR is set")
	}
	color.NoColor = false
	defer func() { color.NoColor = true }()

	out := run(t, "withdraw\n1\n5\nexit\n")
	assert.Contains(t, out, "\x1b[31mAccount not found.\n\x1b[0m")
}
