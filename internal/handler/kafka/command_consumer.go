package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/handler/validation"
	"ledger/internal/infrastructure/cache"
	kafka_infra "ledger/internal/infrastructure/kafka"
	"ledger/internal/util"
)

const (
	CommandCreateUser    = "create_user"
	CommandCreateAccount = "create_account"
	CommandDeposit       = "deposit"
	CommandWithdraw      = "withdraw"
)

const recordTimeout = 5 * time.Second

// StatusPending marks a command id reserved by a handler that has not
// recorded an outcome yet.
const StatusPending = "PENDING"

// ErrCommandPending is returned for a command whose id is reserved but has no
// recorded outcome. The command is not run again.
var ErrCommandPending = errors.New("ledger command already reserved without a recorded outcome")

type LedgerCommand struct {
	CommandID      string `json:"command_id" validate:"required,uuid"`
	Type           string `json:"type" validate:"required,oneof=create_user create_account deposit withdraw"`
	UserID         int64  `json:"user_id,omitempty"`
	AccountID      int64  `json:"account_id,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Amount         string `json:"amount,omitempty"`
	InitialBalance string `json:"initial_balance,omitempty"`
}

type LedgerReply struct {
	ReplyID     string    `json:"reply_id"`
	CommandID   string    `json:"command_id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	UserID      int64     `json:"user_id,omitempty"`
	AccountID   int64     `json:"account_id,omitempty"`
	Balance     string    `json:"balance,omitempty"`
	Message     string    `json:"message,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

type Ledger interface {
	CreateUser(ctx context.Context, name, email string) (int64, error)
	CreateAccount(ctx context.Context, userID int64, initialBalance decimal.Decimal) (int64, error)
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// ReplyStore remembers the reply sent for each command id. Get returns
// cache.ErrMiss for unknown ids. SetNX must be atomic: of two concurrent calls
// for one key, only one reports true.
type ReplyStore interface {
	Get(ctx context.Context, key string) (*LedgerReply, error)
	SetNX(ctx context.Context, key string, value *LedgerReply) (bool, error)
	Set(ctx context.Context, key string, value *LedgerReply) error
	Delete(ctx context.Context, key string) error
}

type commandFunc func(ctx context.Context, cmd LedgerCommand, reply *LedgerReply) error

type CommandHandler struct {
	ledger     Ledger
	replies    ReplyStore
	producer   kafka_infra.Producer
	replyTopic string
	commands   map[string]commandFunc
	logger     *zap.Logger
}

func NewCommandHandler(
	ledger Ledger,
	replies ReplyStore,
	producer kafka_infra.Producer,
	replyTopic string,
	logger *zap.Logger,
) *CommandHandler {
	h := &CommandHandler{
		ledger:     ledger,
		replies:    replies,
		producer:   producer,
		replyTopic: replyTopic,
		logger:     logger,
	}
	h.commands = map[string]commandFunc{
		CommandCreateUser:    h.createUser,
		CommandCreateAccount: h.createAccount,
		CommandDeposit:       h.deposit,
		CommandWithdraw:      h.withdraw,
	}
	return h
}

// Handle is a kafka_infra.MessageHandler. Malformed messages are dropped. The
// command id is reserved before the command runs, so a redelivered or
// concurrent copy never runs it twice: it gets the recorded reply again, or
// ErrCommandPending while no outcome is recorded. Any returned error leaves the
// offset uncommitted.
func (h *CommandHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var cmd LedgerCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		h.logger.Error("Failed to unmarshal ledger command, skipping",
			zap.Error(err),
			zap.ByteString("value", msg.Value),
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))
		return nil
	}
	if cmd.CommandID == "" {
		h.logger.Error("Ledger command without command_id, skipping", zap.Int64("offset", msg.Offset))
		return nil
	}

	logger := h.logger.With(zap.String("command_id", cmd.CommandID), zap.String("type", cmd.Type))

	reserved, err := h.replies.SetNX(ctx, cmd.CommandID, &LedgerReply{
		CommandID:   cmd.CommandID,
		Type:        cmd.Type,
		Status:      StatusPending,
		ProcessedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("reserve command %s: %w", cmd.CommandID, err)
	}
	if !reserved {
		return h.replay(ctx, cmd.CommandID, logger)
	}

	reply := h.execute(ctx, cmd)
	if reply.Status == domain.CodeOK {
		logger.Info("Ledger command applied")
	} else {
		logger.Warn("Ledger command rejected", zap.String("status", reply.Status), zap.String("message", reply.Message))
	}

	// The outcome is recorded even if the handler deadline has passed.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if domain.IsTransient(reply.Status) {
		// Nothing was applied; release the id so a retry runs the command.
		if err := h.replies.Delete(recordCtx, cmd.CommandID); err != nil {
			return fmt.Errorf("release command %s after %s: %w", cmd.CommandID, reply.Status, err)
		}
	} else if err := h.replies.Set(recordCtx, cmd.CommandID, reply); err != nil {
		// The id stays reserved, so redeliveries will not apply the command again.
		logger.Error("Failed to record reply, command stays pending", zap.String("status", reply.Status), zap.Error(err))
		return fmt.Errorf("record reply for command %s: %w", cmd.CommandID, err)
	}
	return h.publish(ctx, reply)
}

func (h *CommandHandler) replay(ctx context.Context, commandID string, logger *zap.Logger) error {
	previous, err := h.replies.Get(ctx, commandID)
	switch {
	case errors.Is(err, cache.ErrMiss):
		// Released between our reservation attempt and this read.
		return fmt.Errorf("command %s: %w", commandID, ErrCommandPending)
	case err != nil:
		return fmt.Errorf("look up reply for command %s: %w", commandID, err)
	case previous.Status == StatusPending:
		logger.Warn("Duplicate ledger command has no recorded outcome, not running it again",
			zap.Time("reserved_at", previous.ProcessedAt))
		return fmt.Errorf("command %s: %w", commandID, ErrCommandPending)
	}

	logger.Info("Duplicate ledger command, republishing recorded reply", zap.String("status", previous.Status))
	return h.publish(ctx, previous)
}

func (h *CommandHandler) execute(ctx context.Context, cmd LedgerCommand) *LedgerReply {
	reply := &LedgerReply{
		ReplyID:   util.GenerateUUID(),
		CommandID: cmd.CommandID,
		Type:      cmd.Type,
		Status:    domain.CodeOK,
	}

	if fieldErrors := validation.Struct(cmd); fieldErrors != nil {
		reply.Status = domain.CodeValidation
		reply.Message = validation.Summary(fieldErrors)
		reply.ProcessedAt = time.Now().UTC()
		return reply
	}

	if err := h.commands[cmd.Type](ctx, cmd, reply); err != nil {
		reply.Status = domain.ErrorCode(err)
		reply.Message = err.Error()
	}
	reply.ProcessedAt = time.Now().UTC()
	return reply
}

func (h *CommandHandler) createUser(ctx context.Context, cmd LedgerCommand, reply *LedgerReply) error {
	userID, err := h.ledger.CreateUser(ctx, cmd.Name, cmd.Email)
	if err != nil {
		return err
	}
	reply.UserID = userID
	return nil
}

func (h *CommandHandler) createAccount(ctx context.Context, cmd LedgerCommand, reply *LedgerReply) error {
	initial := decimal.Zero
	if cmd.InitialBalance != "" {
		var err error
		if initial, err = domain.ParseMoney("initial_balance", cmd.InitialBalance); err != nil {
			return err
		}
	}

	accountID, err := h.ledger.CreateAccount(ctx, cmd.UserID, initial)
	if err != nil {
		return err
	}
	reply.UserID = cmd.UserID
	reply.AccountID = accountID
	reply.Balance = domain.FormatMoney(initial)
	return nil
}

func (h *CommandHandler) deposit(ctx context.Context, cmd LedgerCommand, reply *LedgerReply) error {
	return h.move(ctx, cmd, reply, h.ledger.Deposit)
}

func (h *CommandHandler) withdraw(ctx context.Context, cmd LedgerCommand, reply *LedgerReply) error {
	return h.move(ctx, cmd, reply, h.ledger.Withdraw)
}

func (h *CommandHandler) move(
	ctx context.Context,
	cmd LedgerCommand,
	reply *LedgerReply,
	op func(context.Context, int64, decimal.Decimal) (decimal.Decimal, error),
) error {
	reply.AccountID = cmd.AccountID
	amount, err := domain.ParseMoney("amount", cmd.Amount)
	if err != nil {
		return err
	}
	balance, err := op(ctx, cmd.AccountID, amount)
	if err != nil {
		return err
	}
	reply.Balance = domain.FormatMoney(balance)
	return nil
}

func (h *CommandHandler) publish(ctx context.Context, reply *LedgerReply) error {
	payload, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshal reply for command %s: %w", reply.CommandID, err)
	}
	if err := h.producer.Produce(ctx, h.replyTopic, reply.CommandID, payload); err != nil {
		return fmt.Errorf("publish reply for command %s: %w", reply.CommandID, err)
	}
	return nil
}
