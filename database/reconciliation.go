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
	"database/sql"
	"math/big"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/debitrelay/relayer/model"
)

// SaveRelayReconciliation persists the bookkeeping of one confirmed relay as
// a single transaction: the relayer balance movement, the debited account's
// new balance, the intent's consumed debit, and the relayed-transaction
// history row. Nothing is observable until the commit.
func (d *Datasource) SaveRelayReconciliation(ctx context.Context, rec *model.RelayReconciliation) error {
	newRelayerBalance, err := resolveRelayerBalance(rec)
	if err != nil {
		return err
	}

	intent := rec.Intent
	usedFor := intent.UsedFor + 1
	status := model.IntentStatusRecurring
	if intent.DebitTimes > 0 && usedFor >= intent.DebitTimes {
		status = model.IntentStatusPaid
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning reconciliation transaction")
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logrus.Errorf("reconciliation rollback failed: %v", err)
		}
	}()

	_, err = tx.ExecContext(ctx, `
		UPDATE relayer_balances SET balance = $1 WHERE id = $2`,
		newRelayerBalance, rec.RelayerBalanceID)
	if err != nil {
		return errors.Wrap(err, "updating relayer balance")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts SET balance = $1 WHERE account_id = $2`,
		rec.NewAccountBalance, intent.Account.AccountID)
	if err != nil {
		return errors.Wrap(err, "updating account balance")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payment_intents
		SET status = $1, used_for = $2, last_payment_date = NOW()
		WHERE payment_intent = $3`,
		status, usedFor, intent.PaymentIntent)
	if err != nil {
		return errors.Wrap(err, "updating payment intent")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO relayed_transactions
			(id, network, payee_user_id, payment_intent, relayer_balance_id, new_relayer_balance,
			 all_gas_used, submitted_transaction, commitment, new_account_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		model.GenerateUUIDWithSuffix("rtx"), rec.Network, rec.PayeeUserID, intent.PaymentIntent,
		rec.RelayerBalanceID, newRelayerBalance, rec.AllGasUsed, rec.SubmittedTransaction,
		rec.Commitment, rec.NewAccountBalance)
	if err != nil {
		return errors.Wrap(err, "recording relayed transaction")
	}

	return tx.Commit()
}

// resolveRelayerBalance picks the refund-adjusted balance reported by the
// dynamic path, or derives the fixed path's balance by charging the gas used
// against the balance before the relay.
func resolveRelayerBalance(rec *model.RelayReconciliation) (string, error) {
	if rec.NewRelayerBalance != "" {
		return rec.NewRelayerBalance, nil
	}

	previous, err := model.ParseUnits(rec.PreviousRelayerBalance)
	if err != nil {
		return "", errors.Wrap(err, "parsing previous relayer balance")
	}
	gas, err := model.ParseUnits(rec.AllGasUsed)
	if err != nil {
		return "", errors.Wrap(err, "parsing gas used")
	}
	return model.FormatUnits(new(big.Int).Sub(previous, gas)), nil
}
