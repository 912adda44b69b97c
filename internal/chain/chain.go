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

package chain

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/debitrelay/relayer/model"
)

// Client is the blockchain collaborator consumed by the relay handlers.
// Estimation results carry failure as data because the handlers branch on
// the combination of the errored flag and the balance flags; submission
// failure is an ordinary returned error.
type Client interface {
	EstimateFixedPaymentGas(ctx context.Context, args FixedEstimateArgs) *FixedGasEstimate
	EstimateDynamicPaymentGas(ctx context.Context, args DynamicEstimateArgs) *DynamicGasEstimate
	SubmitRelay(ctx context.Context, args RelayArgs, network string, gasLimit uint64, gasPrice *big.Int) (PendingTransaction, error)
}

// PendingTransaction is a submitted relay transaction awaiting inclusion.
type PendingTransaction interface {
	// AwaitConfirmation blocks until the transaction is mined and returns
	// its outcome. May wait for multiple network blocks.
	AwaitConfirmation(ctx context.Context) (*Receipt, error)
}

// Receipt is the outcome of a confirmed relay transaction. ActualFee is the
// gas actually paid, in minor units.
type Receipt struct {
	Success         bool
	ActualFee       *big.Int
	TransactionHash string
}

// FixedEstimateArgs asks whether a fixed-amount intent can be relayed with
// the payee's pooled relayer balance.
type FixedEstimateArgs struct {
	Proof          json.RawMessage
	PublicSignals  json.RawMessage
	Intent         *model.PaymentIntent
	Network        string
	RelayerBalance *model.RelayerBalance
}

// FixedGasEstimate reports gas feasibility for a fixed payment. When
// Errored is true only AccountBalanceEnough is meaningful; the estimation
// itself could not produce a fee.
type FixedGasEstimate struct {
	Errored              bool
	RelayerBalanceEnough bool
	AccountBalanceEnough bool
	GasLimit             uint64
	GasPrice             *big.Int
	TotalFee             *big.Int
}

// DynamicEstimateArgs asks whether a pre-reserved gas allocation still
// covers relaying the requested debit amount at current prices.
type DynamicEstimateArgs struct {
	Proof           json.RawMessage
	PublicSignals   json.RawMessage
	Intent          *model.PaymentIntent
	Network         string
	AllocatedGas    string
	RequestedAmount string
}

type DynamicGasEstimate struct {
	Errored              bool
	AllocatedGasEnough   bool
	AccountBalanceEnough bool
	GasLimit             uint64
	GasPrice             *big.Int
}

// RelayArgs is the debit authorization forwarded to the on-chain contract.
// Proof and public signals pass through unmodified.
type RelayArgs struct {
	Proof             json.RawMessage
	PublicSignals     json.RawMessage
	PayeeAddress      string
	MaxDebitAmount    string
	ActualDebitAmount string
	DebitTimes        int64
	DebitInterval     int64
}
