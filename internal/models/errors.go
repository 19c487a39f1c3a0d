package models

import (
	"errors"
)

var (
	ErrNoRecord           = errors.New("models: no matching record found")
	ErrInvalidCredentials = errors.New("models: invalid credentials")
	ErrDuplicateEmail     = errors.New("models: duplicate email")
	ErrUserNotFound       = errors.New("models: user not found")
)

var (
	ErrRequestNotFound    = errors.New("request not found")
	ErrRequestUnavailable = errors.New("request expired or quota exhausted")
	ErrAlreadyPurchased   = errors.New("contact access already purchased")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrInvalidAmount      = errors.New("recharge amount out of bounds")
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrDuplicateEvent     = errors.New("webhook event already processed")
	ErrDuplicatePayment   = errors.New("payment already credited")
)
