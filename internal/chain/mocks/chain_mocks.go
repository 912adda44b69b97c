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

package mocks

import (
	"context"
	"math/big"

	"github.com/stretchr/testify/mock"

	"github.com/debitrelay/relayer/internal/chain"
)

// MockChainClient is a testify mock of the blockchain collaborator.
type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) EstimateFixedPaymentGas(ctx context.Context, args chain.FixedEstimateArgs) *chain.FixedGasEstimate {
	called := m.Called(ctx, args)
	return called.Get(0).(*chain.FixedGasEstimate)
}

func (m *MockChainClient) EstimateDynamicPaymentGas(ctx context.Context, args chain.DynamicEstimateArgs) *chain.DynamicGasEstimate {
	called := m.Called(ctx, args)
	return called.Get(0).(*chain.DynamicGasEstimate)
}

func (m *MockChainClient) SubmitRelay(ctx context.Context, args chain.RelayArgs, network string, gasLimit uint64, gasPrice *big.Int) (chain.PendingTransaction, error) {
	called := m.Called(ctx, args, network, gasLimit, gasPrice)
	pending, _ := called.Get(0).(chain.PendingTransaction)
	return pending, called.Error(1)
}

// MockPendingTransaction mocks the confirmation wait of a submitted relay.
type MockPendingTransaction struct {
	mock.Mock
}

func (m *MockPendingTransaction) AwaitConfirmation(ctx context.Context) (*chain.Receipt, error) {
	called := m.Called(ctx)
	receipt, _ := called.Get(0).(*chain.Receipt)
	return receipt, called.Error(1)
}
