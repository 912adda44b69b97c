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

package relayer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/debitrelay/relayer/internal/chain"
	"github.com/debitrelay/relayer/internal/notification"
	"github.com/debitrelay/relayer/model"
	"github.com/sirupsen/logrus"
)

// HandleFixedPayment drives one fixed-amount payment intent through gas
// feasibility, on-chain submission and balance reconciliation. The whole
// authorized amount is debited; gas comes out of the payee's pooled
// relayer balance.
//
// Infeasibility is a terminal, side-effect-free outcome for this delivery:
// the intent keeps (or records) a status explaining why it could not be
// relayed and nothing else changes, so a later sweep can try again.
func (r *Relayer) HandleFixedPayment(ctx context.Context, intent *model.PaymentIntent) error {
	ctx, span := tracer.Start(ctx, "Relaying fixed payment")
	defer span.End()

	logrus.Infof("starting to handle fixed payment intent %s on network %s", intent.PaymentIntent, intent.Network)

	relayerBalance, err := r.datasource.GetRelayerBalanceByUserID(ctx, intent.PayeeUserID, intent.Network)
	if err != nil {
		return logAndRecordError(span, "relayer balance lookup error ", err)
	}

	estimate := r.chain.EstimateFixedPaymentGas(ctx, chain.FixedEstimateArgs{
		Proof:          intent.Proof,
		PublicSignals:  intent.PublicSignals,
		Intent:         intent,
		Network:        intent.Network,
		RelayerBalance: relayerBalance,
	})

	// Estimation worked but the pooled balance cannot pay for gas. The
	// status write is skipped when the intent already says so.
	if !estimate.Errored && !estimate.RelayerBalanceEnough {
		if intent.Status != model.IntentStatusBalanceTooLowToRelay {
			if err := r.datasource.UpdatePaymentIntentBalanceTooLow(ctx, intent.PaymentIntent, model.FormatUnits(estimate.TotalFee)); err != nil {
				return logAndRecordError(span, "balance too low update error ", err)
			}
		}
	}

	// Estimation failed and the debited account cannot cover the debit.
	if estimate.Errored && !estimate.AccountBalanceEnough {
		if err := r.datasource.UpdatePaymentIntentAccountBalanceTooLow(ctx, intent.PaymentIntent); err != nil {
			return logAndRecordError(span, "account balance too low update error ", err)
		}
	}

	if estimate.Errored || !estimate.RelayerBalanceEnough {
		logrus.Infof("fixed payment intent %s is not relayable right now (errored=%t)", intent.PaymentIntent, estimate.Errored)
		return nil
	}

	pending, err := r.chain.SubmitRelay(ctx, chain.RelayArgs{
		Proof:             intent.Proof,
		PublicSignals:     intent.PublicSignals,
		PayeeAddress:      intent.PayeeAddress,
		MaxDebitAmount:    intent.MaxDebitAmount,
		ActualDebitAmount: intent.MaxDebitAmount,
		DebitTimes:        intent.DebitTimes,
		DebitInterval:     intent.DebitInterval,
	}, intent.Network, estimate.GasLimit, estimate.GasPrice)
	if err != nil {
		// transient; the intent is untouched and a later sweep retries it
		SubmissionFailures.WithLabelValues("fixed").Inc()
		span.RecordError(err)
		logrus.Errorf("fixed payment relay submission failed for %s: %v", intent.PaymentIntent, err)
		return nil
	}

	previousBalance, err := relayerBalance.BalanceForNetwork(intent.Network)
	if err != nil {
		return logAndRecordError(span, "relayer balance network error ", err)
	}

	receipt, err := pending.AwaitConfirmation(ctx)
	if err != nil {
		return logAndRecordError(span, "confirmation wait error ", err)
	}
	if !receipt.Success {
		// estimation passed just before submission, so a revert here is
		// accounting drift; surface it and leave every balance untouched
		RelaysReverted.WithLabelValues("fixed").Inc()
		notification.NotifyError(fmt.Errorf("relayed transaction %s reverted for payment intent %s", receipt.TransactionHash, intent.PaymentIntent))
		return nil
	}

	accountBalance, err := model.ParseUnits(intent.Account.Balance)
	if err != nil {
		return logAndRecordError(span, "account balance parse error ", err)
	}
	maxDebit, err := model.ParseUnits(intent.MaxDebitAmount)
	if err != nil {
		return logAndRecordError(span, "max debit parse error ", err)
	}
	newAccountBalance := new(big.Int).Sub(accountBalance, maxDebit)

	err = r.datasource.SaveRelayReconciliation(ctx, &model.RelayReconciliation{
		Network:                intent.Network,
		PayeeUserID:            intent.PayeeUserID,
		PreviousRelayerBalance: previousBalance,
		AllGasUsed:             model.FormatUnits(receipt.ActualFee),
		Intent:                 intent,
		RelayerBalanceID:       relayerBalance.ID,
		SubmittedTransaction:   receipt.TransactionHash,
		Commitment:             intent.Commitment,
		NewAccountBalance:      model.FormatUnits(newAccountBalance),
	})
	if err != nil {
		return logAndRecordError(span, "reconciliation error ", err)
	}

	RelaysConfirmed.WithLabelValues("fixed").Inc()
	logrus.Infof("relayed fixed payment intent %s in transaction %s", intent.PaymentIntent, receipt.TransactionHash)
	return nil
}
