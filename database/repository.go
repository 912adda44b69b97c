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

	"github.com/debitrelay/relayer/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	relayerBalance
	paymentIntent
	dynamicPaymentRequest
	reconciliation
}

// relayerBalance defines reads of pooled gas balances.
type relayerBalance interface {
	GetRelayerBalanceByUserID(ctx context.Context, userID, network string) (*model.RelayerBalance, error)
}

// paymentIntent defines the feasibility-failure status writes on intents.
type paymentIntent interface {
	UpdatePaymentIntentBalanceTooLow(ctx context.Context, paymentIntentID string, missingAmount string) error
	UpdatePaymentIntentAccountBalanceTooLow(ctx context.Context, paymentIntentID string) error
	UpdatePaymentIntentAccountBalanceTooLowForDynamic(ctx context.Context, paymentIntentID string, requestedAmount string) error
}

// dynamicPaymentRequest defines status transitions of dynamic payment jobs.
type dynamicPaymentRequest interface {
	UpdateDynamicPaymentRequestJobStatus(ctx context.Context, jobID string, status model.DynamicPaymentStatus) error
}

// reconciliation defines the post-confirmation balance bookkeeping write.
type reconciliation interface {
	SaveRelayReconciliation(ctx context.Context, rec *model.RelayReconciliation) error
}
