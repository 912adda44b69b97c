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
	"database/sql"
	"log"

	migrate "github.com/rubenv/sql-migrate"
)

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "001_create_relayer_tables",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS accounts (
					account_id TEXT PRIMARY KEY,
					balance TEXT NOT NULL DEFAULT '0',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS relayer_balances (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					network TEXT NOT NULL,
					balance TEXT NOT NULL DEFAULT '0',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE (user_id, network)
				)`,
				`CREATE TABLE IF NOT EXISTS payment_intents (
					id SERIAL PRIMARY KEY,
					payment_intent TEXT NOT NULL UNIQUE,
					network TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'CREATED',
					proof JSONB,
					public_signals JSONB,
					payee_address TEXT NOT NULL,
					payee_user_id TEXT NOT NULL,
					account_id TEXT REFERENCES accounts (account_id),
					max_debit_amount TEXT NOT NULL,
					debit_times BIGINT NOT NULL DEFAULT 0,
					debit_interval BIGINT NOT NULL DEFAULT 0,
					used_for BIGINT NOT NULL DEFAULT 0,
					commitment TEXT,
					relayer_balance_id TEXT REFERENCES relayer_balances (id),
					failed_amount TEXT,
					last_payment_date TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS dynamic_payment_request_jobs (
					id TEXT PRIMARY KEY,
					payment_intent TEXT NOT NULL REFERENCES payment_intents (payment_intent),
					requested_amount TEXT NOT NULL,
					allocated_gas TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'created',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS relayed_transactions (
					id TEXT PRIMARY KEY,
					network TEXT NOT NULL,
					payee_user_id TEXT NOT NULL,
					payment_intent TEXT NOT NULL,
					relayer_balance_id TEXT NOT NULL,
					new_relayer_balance TEXT NOT NULL,
					all_gas_used TEXT NOT NULL,
					submitted_transaction TEXT NOT NULL,
					commitment TEXT,
					new_account_balance TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_payment_intents_status ON payment_intents (status)`,
				`CREATE INDEX IF NOT EXISTS idx_dynamic_jobs_status ON dynamic_payment_request_jobs (status)`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS relayed_transactions`,
				`DROP TABLE IF EXISTS dynamic_payment_request_jobs`,
				`DROP TABLE IF EXISTS payment_intents`,
				`DROP TABLE IF EXISTS relayer_balances`,
				`DROP TABLE IF EXISTS accounts`,
			},
		},
	},
}

// Migrate applies the schema migrations against the connected database and
// returns how many were applied.
func Migrate(db *sql.DB) (int, error) {
	applied, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	if err != nil {
		return 0, err
	}
	if applied > 0 {
		log.Printf("applied %d database migrations", applied)
	}
	return applied, nil
}

// MigrateDown rolls the schema migrations back.
func MigrateDown(db *sql.DB) (int, error) {
	return migrate.Exec(db, "postgres", migrationSource, migrate.Down)
}
