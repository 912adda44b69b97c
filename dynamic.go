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

// HandleDynamicPayment drives one dynamic payment request through gas
// feasibility, on-chain submission and balance reconciliation. The payee
// chose the debit amount per request, and gas was already reserved from the
// relayer balance when the request was locked, so feasibility here only
// re-checks that reservation against current prices. Unspent reservation is
// refunded to the relayer balance after confirmation.
func (r *Relayer) HandleDynamicPayment(ctx context.Context, job *model.DynamicPaymentRequestJob) error {
	ctx, span := tracer.Start(ctx, "Relaying dynamic payment")
	defer span.End()

	intent := job.PaymentIntent
	logrus.Infof("starting to handle dynamic payment request %s for payment intent %s", job.ID, intent.PaymentIntent)

	estimate := r.chain.EstimateDynamicPaymentGas(ctx, chain.DynamicEstimateArgs{
		Proof:           intent.Proof,
		PublicSignals:   intent.PublicSignals,
		Intent:          intent,
		Network:         intent.Network,
		AllocatedGas:    job.AllocatedGas,
		RequestedAmount: job.RequestedAmount,
	})

	// Prices moved past the reservation; unlock the request so it can be
	// retried when they come back down.
	if !estimate.Errored && !estimate.AllocatedGasEnough {
		logrus.Infof("allocated gas no longer covers dynamic payment request %s, unlocking", job.ID)
		if err := r.datasource.UpdateDynamicPaymentRequestJobStatus(ctx, job.ID, model.DynamicStatusUnlocked); err != nil {
			return logAndRecordError(span, "unlock update error ", err)
		}
		return nil
	}

	if estimate.Errored {
		if err := r.datasource.UpdateDynamicPaymentRequestJobStatus(ctx, job.ID, model.DynamicStatusRejected); err != nil {
			return logAndRecordError(span, "reject update error ", err)
		}
		if !estimate.AccountBalanceEnough {
			// record the requested amount so the account owner can see
			// which debit the balance could not cover
			if err := r.datasource.UpdatePaymentIntentAccountBalanceTooLowForDynamic(ctx, intent.PaymentIntent, job.RequestedAmount); err != nil {
				return logAndRecordError(span, "account balance too low update error ", err)
			}
		}
		return nil
	}

	pending, err := r.chain.SubmitRelay(ctx, chain.RelayArgs{
		Proof:             intent.Proof,
		PublicSignals:     intent.PublicSignals,
		PayeeAddress:      intent.PayeeAddress,
		MaxDebitAmount:    intent.MaxDebitAmount,
		ActualDebitAmount: job.RequestedAmount,
		DebitTimes:        intent.DebitTimes,
		DebitInterval:     intent.DebitInterval,
	}, intent.Network, estimate.GasLimit, estimate.GasPrice)
	if err != nil {
		// the reservation is still intact; unlock so a later sweep retries
		SubmissionFailures.WithLabelValues("dynamic").Inc()
		span.RecordError(err)
		logrus.Errorf("dynamic payment relay submission failed for request %s: %v", job.ID, err)
		if err := r.datasource.UpdateDynamicPaymentRequestJobStatus(ctx, job.ID, model.DynamicStatusUnlocked); err != nil {
			return logAndRecordError(span, "unlock update error ", err)
		}
		return nil
	}

	receipt, err := pending.AwaitConfirmation(ctx)
	if err != nil {
		return logAndRecordError(span, "confirmation wait error ", err)
	}
	if !receipt.Success {
		RelaysReverted.WithLabelValues("dynamic").Inc()
		notification.NotifyError(fmt.Errorf("relayed transaction %s reverted for dynamic payment request %s", receipt.TransactionHash, job.ID))
		return nil
	}

	if intent.RelayerBalance == nil {
		return logAndRecordError(span, "reconciliation error ", fmt.Errorf("dynamic payment request %s carries no relayer balance reference", job.ID))
	}
	currentBalance, err := intent.RelayerBalance.BalanceForNetwork(intent.Network)
	if err != nil {
		return logAndRecordError(span, "relayer balance network error ", err)
	}
	currentUnits, err := model.ParseUnits(currentBalance)
	if err != nil {
		return logAndRecordError(span, "relayer balance parse error ", err)
	}
	allocated, err := model.ParseUnits(job.AllocatedGas)
	if err != nil {
		return logAndRecordError(span, "allocated gas parse error ", err)
	}

	gasRefund := new(big.Int).Sub(allocated, receipt.ActualFee)
	if gasRefund.Sign() < 0 {
		// the fee outran the reservation; keep the arithmetic honest
		// instead of clamping, and make the drift loud
		GasRefundUnderflows.Inc()
		notification.NotifyError(fmt.Errorf("gas refund for dynamic payment request %s is negative: allocated %s, actual fee %s", job.ID, job.AllocatedGas, model.FormatUnits(receipt.ActualFee)))
	}
	newRelayerBalance := new(big.Int).Add(currentUnits, gasRefund)

	accountBalance, err := model.ParseUnits(intent.Account.Balance)
	if err != nil {
		return logAndRecordError(span, "account balance parse error ", err)
	}
	requested, err := model.ParseUnits(job.RequestedAmount)
	if err != nil {
		return logAndRecordError(span, "requested amount parse error ", err)
	}
	newAccountBalance := new(big.Int).Sub(accountBalance, requested)

	err = r.datasource.SaveRelayReconciliation(ctx, &model.RelayReconciliation{
		Network:              intent.Network,
		PayeeUserID:          intent.PayeeUserID,
		NewRelayerBalance:    model.FormatUnits(newRelayerBalance),
		AllGasUsed:           model.FormatUnits(receipt.ActualFee),
		Intent:               intent,
		RelayerBalanceID:     intent.RelayerBalance.ID,
		SubmittedTransaction: receipt.TransactionHash,
		Commitment:           intent.Commitment,
		NewAccountBalance:    model.FormatUnits(newAccountBalance),
	})
	if err != nil {
		return logAndRecordError(span, "reconciliation error ", err)
	}

	if err := r.datasource.UpdateDynamicPaymentRequestJobStatus(ctx, job.ID, model.DynamicStatusCompleted); err != nil {
		return logAndRecordError(span, "completion update error ", err)
	}

	RelaysConfirmed.WithLabelValues("dynamic").Inc()
	logrus.Infof("relayed dynamic payment request %s in transaction %s", job.ID, receipt.TransactionHash)
	return nil
}
