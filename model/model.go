/*
Copyright 2026 DebitRelay Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// PaymentIntentStatus is the lifecycle status of a payment intent.
// The wire values match what the dashboard reads back for display.
type PaymentIntentStatus string

const (
	IntentStatusCreated                           PaymentIntentStatus = "CREATED"
	IntentStatusRecurring                         PaymentIntentStatus = "RECURRING"
	IntentStatusPaid                              PaymentIntentStatus = "PAID"
	IntentStatusBalanceTooLowToRelay              PaymentIntentStatus = "BALANCETOOLOWTORELAY"
	IntentStatusAccountBalanceTooLow              PaymentIntentStatus = "ACCOUNTBALANCETOOLOW"
	IntentStatusAccountBalanceTooLowForDynamic    PaymentIntentStatus = "ACCOUNTBALANCETOOLOWFORDYNAMICPAYMENT"
)

// DynamicPaymentStatus is the lifecycle status of a dynamic payment request job.
type DynamicPaymentStatus string

const (
	DynamicStatusCreated   DynamicPaymentStatus = "created"
	DynamicStatusLocked    DynamicPaymentStatus = "locked"
	DynamicStatusUnlocked  DynamicPaymentStatus = "unlocked"
	DynamicStatusRejected  DynamicPaymentStatus = "rejected"
	DynamicStatusCompleted DynamicPaymentStatus = "completed"
)

// Account is the debited account referenced by a payment intent. The balance
// is a decimal string and must go through ParseUnits before any arithmetic.
type Account struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// PaymentIntent is a payee's proof-backed authorization to debit an account,
// fixed or recurring. Proof and public signals are opaque to the relayer and
// passed through to the chain unmodified.
type PaymentIntent struct {
	ID               int64               `json:"-"`
	PaymentIntent    string              `json:"payment_intent"`
	Network          string              `json:"network"`
	Status           PaymentIntentStatus `json:"status"`
	Proof            json.RawMessage     `json:"proof"`
	PublicSignals    json.RawMessage     `json:"public_signals"`
	PayeeAddress     string              `json:"payee_address"`
	PayeeUserID      string              `json:"payee_user_id"`
	Account          *Account            `json:"account"`
	MaxDebitAmount   string              `json:"max_debit_amount"`
	DebitTimes       int64               `json:"debit_times"`
	DebitInterval    int64               `json:"debit_interval"`
	UsedFor          int64               `json:"used_for"`
	Commitment       string              `json:"commitment"`
	RelayerBalance   *RelayerBalance     `json:"relayer_balance,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	LastPaymentDate  time.Time           `json:"last_payment_date,omitempty"`
	FailedAmount     string              `json:"failed_amount,omitempty"`
}

// Validate checks the fields the relay handlers depend on. Invalid intents
// are skipped at admission, never enqueued.
func (pi *PaymentIntent) Validate() error {
	return validation.ValidateStruct(pi,
		validation.Field(&pi.PaymentIntent, validation.Required),
		validation.Field(&pi.Network, validation.Required),
		validation.Field(&pi.PayeeAddress, validation.Required),
		validation.Field(&pi.PayeeUserID, validation.Required),
		validation.Field(&pi.Account, validation.Required),
		validation.Field(&pi.MaxDebitAmount, validation.Required, validation.By(validAmount)),
	)
}

// DynamicPaymentRequestJob is a request to debit a variable amount under an
// existing intent's authorization, with gas pre-reserved from the payee's
// relayer balance at creation time.
type DynamicPaymentRequestJob struct {
	ID              string               `json:"id"`
	PaymentIntent   *PaymentIntent       `json:"payment_intent"`
	RequestedAmount string               `json:"requested_amount"`
	AllocatedGas    string               `json:"allocated_gas"`
	Status          DynamicPaymentStatus `json:"status"`
	CreatedAt       time.Time            `json:"created_at"`
}

func (job *DynamicPaymentRequestJob) Validate() error {
	return validation.ValidateStruct(job,
		validation.Field(&job.ID, validation.Required),
		validation.Field(&job.PaymentIntent, validation.Required),
		validation.Field(&job.RequestedAmount, validation.Required, validation.By(validAmount)),
		validation.Field(&job.AllocatedGas, validation.Required, validation.By(validAmount)),
	)
}

// RelayerBalance is the pooled gas balance of one payee user on one network.
type RelayerBalance struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Network   string    `json:"network"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// BalanceForNetwork returns the decimal balance backing relays on the given
// network. Relayer balances are stored network-scoped, so asking for any
// other network is a wiring mistake.
func (rb *RelayerBalance) BalanceForNetwork(network string) (string, error) {
	if rb.Network != network {
		return "", fmt.Errorf("relayer balance %s belongs to network %s, not %s", rb.ID, rb.Network, network)
	}
	return rb.Balance, nil
}

// RelayReconciliation carries everything persisted after a confirmed relay:
// the relayer balance movement, the debited account's new balance and the
// relayed transaction history row. Exactly one of PreviousRelayerBalance or
// NewRelayerBalance is set; fixed relays report the balance before gas was
// spent, dynamic relays report the refund-adjusted balance they computed.
type RelayReconciliation struct {
	Network                string
	PayeeUserID            string
	PreviousRelayerBalance string
	NewRelayerBalance      string
	AllGasUsed             string
	Intent                 *PaymentIntent
	RelayerBalanceID       string
	SubmittedTransaction   string
	Commitment             string
	NewAccountBalance      string
}

func validAmount(value interface{}) error {
	s, _ := value.(string)
	_, err := ParseUnits(s)
	return err
}

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}
