package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/lifecycle"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/model"
)

// Ledger holds the per-user coin balances. The guarded UPDATE in Debit is both
// the insufficient-balance check and the mutation, so concurrent debits on the
// same user serialize on the row and can never jointly overdraw.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func coinColumn(currency model.Currency) (string, error) {
	switch currency {
	case model.COIN_SUPER:
		return "super_coin", nil
	case model.COIN_HELPER:
		return "helper_coin", nil
	default:
		return "", fmt.Errorf("unknown currency %q", currency)
	}
}

func (l *Ledger) Balance(ctx context.Context, userId model.UserId) (*model.Balance, error) {
	balance := &model.Balance{UserId: userId}
	err := querierFrom(ctx, l.db).QueryRowContext(ctx,
		`SELECT super_coin, helper_coin FROM balances WHERE user_id = $1`,
		string(userId)).Scan(&balance.SuperCoin, &balance.HelperCoin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("balance for user %s: %w", userId, lifecycle.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get balance for user %s: %w", userId, err)
	}
	return balance, nil
}

// Debit subtracts amount from one currency. The WHERE clause keeps the original
// guard: a debit equal to the full balance is rejected, not just an overdraw.
func (l *Ledger) Debit(ctx context.Context, userId model.UserId, currency model.Currency, amount int64) (*model.Balance, error) {
	if amount < 0 {
		return nil, fmt.Errorf("negative debit amount %d", amount)
	}
	column, err := coinColumn(currency)
	if err != nil {
		return nil, err
	}
	balance := &model.Balance{UserId: userId}
	err = querierFrom(ctx, l.db).QueryRowContext(ctx,
		`UPDATE balances SET `+column+` = `+column+` - $1
		 WHERE user_id = $2 AND `+column+` > $1
		 RETURNING super_coin, helper_coin`,
		amount, string(userId)).Scan(&balance.SuperCoin, &balance.HelperCoin)
	if errors.Is(err, sql.ErrNoRows) {
		current, balErr := l.Balance(ctx, userId)
		if balErr != nil {
			return nil, balErr
		}
		return nil, &lifecycle.InsufficientBalanceError{Currency: currency, Balance: current.Amount(currency)}
	}
	if err != nil {
		return nil, fmt.Errorf("debit %s for user %s: %w", currency, userId, err)
	}
	return balance, nil
}

// Credit adds amount to one currency, creating the balance row on first use.
func (l *Ledger) Credit(ctx context.Context, userId model.UserId, currency model.Currency, amount int64) (*model.Balance, error) {
	if amount < 0 {
		return nil, fmt.Errorf("negative credit amount %d", amount)
	}
	column, err := coinColumn(currency)
	if err != nil {
		return nil, err
	}
	superInit, helperInit := int64(0), int64(0)
	if currency == model.COIN_SUPER {
		superInit = amount
	} else {
		helperInit = amount
	}
	balance := &model.Balance{UserId: userId}
	err = querierFrom(ctx, l.db).QueryRowContext(ctx,
		`INSERT INTO balances (user_id, super_coin, helper_coin) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET `+column+` = balances.`+column+` + $4
		 RETURNING super_coin, helper_coin`,
		string(userId), superInit, helperInit, amount).Scan(&balance.SuperCoin, &balance.HelperCoin)
	if err != nil {
		return nil, fmt.Errorf("credit %s for user %s: %w", currency, userId, err)
	}
	return balance, nil
}
