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

// GetRelayerBalanceByUserID fetches the payee user's pooled gas balance for
// one network.
func (d *Datasource) GetRelayerBalanceByUserID(ctx context.Context, userID, network string) (*model.RelayerBalance, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, user_id, network, balance, created_at
		FROM relayer_balances
		WHERE user_id = $1 AND network = $2`,
		userID, network)

	rb := model.RelayerBalance{}
	err := row.Scan(&rb.ID, &rb.UserID, &rb.Network, &rb.Balance, &rb.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching relayer balance for user %s on network %s", userID, network)
	}
	return &rb, nil
}
