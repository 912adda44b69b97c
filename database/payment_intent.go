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

package database

import (
	"context"

	"github.com/pkg/errors"

	"github.com/debitrelay/relayer/model"
)

// UpdatePaymentIntentBalanceTooLow flags an intent whose payee relayer
// balance cannot cover the estimated fee, recording the fee so the dashboard
// can show how much is missing.
func (d *Datasource) UpdatePaymentIntentBalanceTooLow(ctx context.Context, paymentIntentID string, missingAmount string) error {
	return d.updateIntentStatus(ctx, paymentIntentID, model.IntentStatusBalanceTooLowToRelay, missingAmount)
}

// UpdatePaymentIntentAccountBalanceTooLow flags an intent whose debited
// account cannot cover its max debit amount.
func (d *Datasource) UpdatePaymentIntentAccountBalanceTooLow(ctx context.Context, paymentIntentID string) error {
	return d.updateIntentStatus(ctx, paymentIntentID, model.IntentStatusAccountBalanceTooLow, "")
}

// UpdatePaymentIntentAccountBalanceTooLowForDynamic flags the parent intent
// of a rejected dynamic payment, recording the requested amount for display.
func (d *Datasource) UpdatePaymentIntentAccountBalanceTooLowForDynamic(ctx context.Context, paymentIntentID string, requestedAmount string) error {
	return d.updateIntentStatus(ctx, paymentIntentID, model.IntentStatusAccountBalanceTooLowForDynamic, requestedAmount)
}

func (d *Datasource) updateIntentStatus(ctx context.Context, paymentIntentID string, status model.PaymentIntentStatus, failedAmount string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payment_intents
		SET status = $1, failed_amount = NULLIF($2, '')
		WHERE payment_intent = $3`,
		status, failedAmount, paymentIntentID)
	if err != nil {
		return errors.Wrapf(err, "updating payment intent %s to %s", paymentIntentID, status)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Errorf("payment intent %s not found", paymentIntentID)
	}
	return nil
}
