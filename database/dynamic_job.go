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

// UpdateDynamicPaymentRequestJobStatus moves a dynamic payment request to
// unlocked, rejected or completed.
func (d *Datasource) UpdateDynamicPaymentRequestJobStatus(ctx context.Context, jobID string, status model.DynamicPaymentStatus) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE dynamic_payment_request_jobs
		SET status = $1
		WHERE id = $2`,
		status, jobID)
	if err != nil {
		return errors.Wrapf(err, "updating dynamic payment request job %s to %s", jobID, status)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Errorf("dynamic payment request job %s not found", jobID)
	}
	return nil
}
