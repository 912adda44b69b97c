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

	"github.com/stretchr/testify/mock"

	"github.com/debitrelay/relayer/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) GetRelayerBalanceByUserID(ctx context.Context, userID, network string) (*model.RelayerBalance, error) {
	args := m.Called(ctx, userID, network)
	rb, _ := args.Get(0).(*model.RelayerBalance)
	return rb, args.Error(1)
}

func (m *MockDataSource) UpdatePaymentIntentBalanceTooLow(ctx context.Context, paymentIntentID string, missingAmount string) error {
	args := m.Called(ctx, paymentIntentID, missingAmount)
	return args.Error(0)
}

func (m *MockDataSource) UpdatePaymentIntentAccountBalanceTooLow(ctx context.Context, paymentIntentID string) error {
	args := m.Called(ctx, paymentIntentID)
	return args.Error(0)
}

func (m *MockDataSource) UpdatePaymentIntentAccountBalanceTooLowForDynamic(ctx context.Context, paymentIntentID string, requestedAmount string) error {
	args := m.Called(ctx, paymentIntentID, requestedAmount)
	return args.Error(0)
}

func (m *MockDataSource) UpdateDynamicPaymentRequestJobStatus(ctx context.Context, jobID string, status model.DynamicPaymentStatus) error {
	args := m.Called(ctx, jobID, status)
	return args.Error(0)
}

func (m *MockDataSource) SaveRelayReconciliation(ctx context.Context, rec *model.RelayReconciliation) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
