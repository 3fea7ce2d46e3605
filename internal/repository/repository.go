package repository

import (
	"errors"
)

var (
	ErrRoundNotFound       = errors.New("round not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)
