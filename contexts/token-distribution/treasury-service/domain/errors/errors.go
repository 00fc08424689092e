package errors

import "errors"

var (
	ErrInvalidTransfer           = errors.New("treasury transfer input is invalid")
	ErrInsufficientFunds         = errors.New("treasury account balance is insufficient")
	ErrInsufficientAuthorization = errors.New("treasury spender allowance is insufficient")
	ErrAccountNotFound           = errors.New("treasury account not found")
)
