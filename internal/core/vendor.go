package core

import (
	"context"

	"github.com/target/bgsms/internal/domain/model"
)

// SendCapability delivers one message through a vendor. Ordinary delivery
// failures are reported through the outcome; an error means the capability
// itself is misconfigured.
type SendCapability interface {
	Send(ctx context.Context, req model.SendRequest) (model.SendOutcome, error)
}

// BalanceCapability queries the remaining balance of a vendor account.
type BalanceCapability interface {
	GetBalance(ctx context.Context, vendor string, creds model.Credentials) (model.Balance, error)
}

// VendorRegistry resolves capability names stored on vendor rows.
type VendorRegistry interface {
	SendCapability(name string) (SendCapability, bool)
	BalanceCapability(name string) (BalanceCapability, bool)
}
