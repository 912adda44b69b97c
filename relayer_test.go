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
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/debitrelay/relayer/config"
	"github.com/debitrelay/relayer/database/mocks"
	chain_mocks "github.com/debitrelay/relayer/internal/chain/mocks"
	lockstore "github.com/debitrelay/relayer/internal/lock"
	"github.com/debitrelay/relayer/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// stubQueue stands in for the asynq-backed queue so admission tests can
// observe enqueues without a broker.
type stubQueue struct {
	enqueued []enqueuedJob
	failWith error
	tasks    map[string]bool
}

type enqueuedJob struct {
	kind     JobKind
	intentID string
	payload  interface{}
}

func (q *stubQueue) Enqueue(_ context.Context, kind JobKind, intentID string, payload interface{}) error {
	if q.failWith != nil {
		return q.failWith
	}
	q.enqueued = append(q.enqueued, enqueuedJob{kind: kind, intentID: intentID, payload: payload})
	if q.tasks == nil {
		q.tasks = make(map[string]bool)
	}
	q.tasks[kind.LockKey(intentID)] = true
	return nil
}

func (q *stubQueue) HasTask(_ context.Context, taskID string) (bool, error) {
	return q.tasks[taskID], nil
}

func newTestRelayer(t *testing.T, capacity int64) (*Relayer, *stubQueue, *mocks.MockDataSource, *chain_mocks.MockChainClient, *miniredis.Miniredis) {
	t.Helper()
	config.MockConfig(&config.Configuration{ProjectName: "relayer"})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	queue := &stubQueue{}
	ds := new(mocks.MockDataSource)
	chainClient := new(chain_mocks.MockChainClient)
	r := &Relayer{
		queue:      queue,
		locks:      lockstore.NewStore(client, capacity),
		datasource: ds,
		chain:      chainClient,
	}
	return r, queue, ds, chainClient, mr
}

func units(t *testing.T, amount string) *big.Int {
	t.Helper()
	u, err := model.ParseUnits(amount)
	require.NoError(t, err)
	return u
}

func newTestIntent(status model.PaymentIntentStatus) *model.PaymentIntent {
	return &model.PaymentIntent{
		PaymentIntent: model.GenerateUUIDWithSuffix("intent"),
		Network:       "base-sepolia",
		Status:        status,
		Proof:         json.RawMessage(`{"pi_a":["1","2"]}`),
		PublicSignals: json.RawMessage(`["1","2","3"]`),
		PayeeAddress:  fmt.Sprintf("0x%040x", gofakeit.Uint64()),
		PayeeUserID:   model.GenerateUUIDWithSuffix("user"),
		Account: &model.Account{
			AccountID: model.GenerateUUIDWithSuffix("account"),
			Balance:   "5",
		},
		MaxDebitAmount: "1.0",
		DebitTimes:     1,
		DebitInterval:  0,
		Commitment:     gofakeit.UUID(),
	}
}

func newTestDynamicJob() *model.DynamicPaymentRequestJob {
	intent := newTestIntent(model.IntentStatusCreated)
	intent.Account.Balance = "2"
	intent.RelayerBalance = &model.RelayerBalance{
		ID:      model.GenerateUUIDWithSuffix("rlb"),
		UserID:  intent.PayeeUserID,
		Network: intent.Network,
		Balance: "0.2",
	}
	return &model.DynamicPaymentRequestJob{
		ID:              model.GenerateUUIDWithSuffix("dynreq"),
		PaymentIntent:   intent,
		RequestedAmount: "0.5",
		AllocatedGas:    "0.02",
		Status:          model.DynamicStatusLocked,
	}
}
