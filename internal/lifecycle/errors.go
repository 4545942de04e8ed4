package lifecycle

import (
	"errors"
	"fmt"

	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/model"
)

var (
	ErrorNotFound            = errors.New("not found")
	ErrorForbidden           = errors.New("forbidden")
	ErrorIllegalTransition   = errors.New("illegal transition")
	ErrorInsufficientBalance = errors.New("insufficient balance")
	ErrorAddressNotFound     = errors.New("address not found")
	ErrorConflict            = errors.New("conflict")
)

// InsufficientBalanceError reports which currency could not cover the requested
// debit. It matches ErrorInsufficientBalance under errors.Is.
type InsufficientBalanceError struct {
	Currency model.Currency
	Balance  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s: %d available", e.Currency, e.Balance)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrorInsufficientBalance
}
