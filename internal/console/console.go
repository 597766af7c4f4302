// Package console is the interactive text front end. Each command is looked up
// by name and prompts for its fields one line at a time.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/app/reports"
	"ledger/internal/domain"
)

type Ledger interface {
	CreateUser(ctx context.Context, name, email string) (int64, error)
	CreateAccount(ctx context.Context, userID int64, initialBalance decimal.Decimal) (int64, error)
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
}

type AccountQuerier interface {
	ListAccounts(ctx context.Context) ([]reports.AccountView, error)
}

var errExit = errors.New("exit")

type command struct {
	name  string
	usage string
	run   func(ctx context.Context) error
}

type Console struct {
	ledger   Ledger
	reports  AccountQuerier
	in       *bufio.Scanner
	out      io.Writer
	commands []command
	byName   map[string]command
	echo     bool
	ok       *color.Color
	fail     *color.Color
	logger   *zap.Logger
}

func New(l Ledger, q AccountQuerier, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	c := &Console{
		ledger:  l,
		reports: q,
		in:      bufio.NewScanner(in),
		out:     out,
		ok:      color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		logger:  logger,
	}
	c.commands = []command{
		{name: "add-user", usage: "register a user", run: c.addUser},
		{name: "create-account", usage: "open an account for a user", run: c.createAccount},
		{name: "deposit", usage: "deposit into an account", run: c.deposit},
		{name: "withdraw", usage: "withdraw from an account", run: c.withdraw},
		{name: "balance", usage: "show an account balance", run: c.balance},
		{name: "accounts", usage: "list users and their accounts", run: c.accounts},
		{name: "help", usage: "show this list", run: c.help},
		{name: "exit", usage: "quit", run: func(context.Context) error { return errExit }},
	}
	c.byName = make(map[string]command, len(c.commands))
	for _, cmd := range c.commands {
		c.byName[cmd.name] = cmd
	}
	return c
}

// SetEcho makes the console repeat every line it reads after the prompt, so a
// transcript of scripted input stays readable.
func (c *Console) SetEcho(echo bool) {
	c.echo = echo
}

// Run reads commands until exit, end of input or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	c.println("Simple Bank System (Console)")
	_ = c.help(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := c.prompt("\n> ")
		if err != nil {
			return ignoreEOF(err)
		}
		if line == "" {
			continue
		}

		cmd, ok := c.byName[strings.ToLower(line)]
		if !ok {
			c.fail.Fprintln(c.out, "Invalid option. Type 'help' for the list of commands.")
			continue
		}

		err = cmd.run(ctx)
		switch {
		case errors.Is(err, errExit):
			c.println("Exiting...")
			return nil
		case err != nil:
			return ignoreEOF(err)
		}
	}
}

func (c *Console) addUser(ctx context.Context) error {
	name, err := c.prompt("Enter name: ")
	if err != nil {
		return err
	}
	email, err := c.prompt("Enter email: ")
	if err != nil {
		return err
	}

	userID, err := c.ledger.CreateUser(ctx, name, email)
	if err != nil {
		c.report("Error adding user", err)
		return nil
	}
	c.ok.Fprintf(c.out, "User added successfully. (ID: %d)\n", userID)
	return nil
}

func (c *Console) createAccount(ctx context.Context) error {
	userID, ok, err := c.promptID("Enter user ID: ", "Invalid user ID.")
	if err != nil || !ok {
		return err
	}
	balance, ok, err := c.promptMoney("Enter initial balance: ", "initial_balance", "Invalid amount.")
	if err != nil || !ok {
		return err
	}

	accountID, err := c.ledger.CreateAccount(ctx, userID, balance)
	if err != nil {
		c.report("Error creating account", err)
		return nil
	}
	c.ok.Fprintf(c.out, "Account created successfully. (ID: %d)\n", accountID)
	return nil
}

func (c *Console) deposit(ctx context.Context) error {
	accountID, amount, ok, err := c.promptMovement("Enter amount to deposit: ")
	if err != nil || !ok {
		return err
	}
	balance, err := c.ledger.Deposit(ctx, accountID, amount)
	if err != nil {
		c.report("Error depositing", err)
		return nil
	}
	c.ok.Fprintf(c.out, "Deposit successful. New balance: %s\n", domain.FormatMoney(balance))
	return nil
}

func (c *Console) withdraw(ctx context.Context) error {
	accountID, amount, ok, err := c.promptMovement("Enter amount to withdraw: ")
	if err != nil || !ok {
		return err
	}
	balance, err := c.ledger.Withdraw(ctx, accountID, amount)
	if err != nil {
		c.report("Error withdrawing", err)
		return nil
	}
	c.ok.Fprintf(c.out, "Withdrawal successful. New balance: %s\n", domain.FormatMoney(balance))
	return nil
}

func (c *Console) balance(ctx context.Context) error {
	accountID, ok, err := c.promptID("Enter account ID: ", "Invalid account ID.")
	if err != nil || !ok {
		return err
	}
	balance, err := c.ledger.GetBalance(ctx, accountID)
	if err != nil {
		c.report("Error reading balance", err)
		return nil
	}
	c.printf("Balance: %s\n", domain.FormatMoney(balance))
	return nil
}

func (c *Console) accounts(ctx context.Context) error {
	views, err := c.reports.ListAccounts(ctx)
	if err != nil {
		c.report("Error viewing accounts", err)
		return nil
	}
	if err := reports.Render(c.out, views); err != nil {
		return fmt.Errorf("render accounts: %w", err)
	}
	return nil
}

func (c *Console) help(context.Context) error {
	c.println("\nCommands:")
	for _, cmd := range c.commands {
		c.printf("  %-15s %s\n", cmd.name, cmd.usage)
	}
	return nil
}

func (c *Console) promptMovement(amountPrompt string) (int64, decimal.Decimal, bool, error) {
	idText, err := c.prompt("Enter account ID: ")
	if err != nil {
		return 0, decimal.Zero, false, err
	}
	amountText, err := c.prompt(amountPrompt)
	if err != nil {
		return 0, decimal.Zero, false, err
	}

	accountID, idErr := strconv.ParseInt(idText, 10, 64)
	amount, amountErr := domain.ParseMoney("amount", amountText)
	if idErr != nil || amountErr != nil {
		c.fail.Fprintln(c.out, "Invalid account ID or amount.")
		return 0, decimal.Zero, false, nil
	}
	return accountID, amount, true, nil
}

func (c *Console) promptID(text, invalid string) (int64, bool, error) {
	s, err := c.prompt(text)
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		c.fail.Fprintln(c.out, invalid)
		return 0, false, nil
	}
	return id, true, nil
}

func (c *Console) promptMoney(text, field, invalid string) (decimal.Decimal, bool, error) {
	s, err := c.prompt(text)
	if err != nil {
		return decimal.Zero, false, err
	}
	amount, err := domain.ParseMoney(field, s)
	if err != nil {
		c.fail.Fprintln(c.out, invalid)
		return decimal.Zero, false, nil
	}
	return amount, true, nil
}

func (c *Console) prompt(text string) (string, error) {
	fmt.Fprint(c.out, text)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := strings.TrimSpace(c.in.Text())
	if c.echo {
		fmt.Fprintln(c.out, line)
	}
	return line, nil
}

// report prints a precise message for each ledger error kind.
func (c *Console) report(action string, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		c.fail.Fprintln(c.out, "Insufficient balance.")
	case errors.Is(err, domain.ErrAccountNotFound):
		c.fail.Fprintln(c.out, "Account not found.")
	case errors.Is(err, domain.ErrInvalidAmount):
		c.fail.Fprintln(c.out, "Amount must be positive with at most two decimal places.")
	case errors.As(err, &vErr):
		c.fail.Fprintf(c.out, "%s: %s.\n", action, vErr.Error())
	case errors.Is(err, domain.ErrBusy):
		c.fail.Fprintln(c.out, "Account is busy, please try again.")
	default:
		c.logger.Error(action, zap.Error(err))
		c.fail.Fprintf(c.out, "%s: %v\n", action, err)
	}
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
