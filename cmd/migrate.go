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

package main

import (
	"log"

	"github.com/debitrelay/relayer/config"
	"github.com/debitrelay/relayer/database"
	"github.com/spf13/cobra"
)

// migrateCommands creates the command for applying schema migrations.
func migrateCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run relayer schema migrations",
	}

	cmd.AddCommand(migrateUpCommands())
	cmd.AddCommand(migrateDownCommands())

	return cmd
}

func migrateUpCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use: "up",
		Run: func(cmd *cobra.Command, args []string) {
			cnf, err := config.Fetch()
			if err != nil {
				log.Fatalf("Error fetching config: %v", err)
			}

			db, err := database.GetDBConnection(cnf)
			if err != nil {
				log.Fatalf("Error connecting to database: %v", err)
			}

			n, err := database.Migrate(db.Conn)
			if err != nil {
				log.Fatalf("Error migrating up: %v", err)
			}
			log.Printf("Applied %d migrations!", n)
		},
	}
	return cmd
}

func migrateDownCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use: "down",
		Run: func(cmd *cobra.Command, args []string) {
			cnf, err := config.Fetch()
			if err != nil {
				log.Fatalf("Error fetching config: %v", err)
			}

			db, err := database.GetDBConnection(cnf)
			if err != nil {
				log.Fatalf("Error connecting to database: %v", err)
			}

			n, err := database.MigrateDown(db.Conn)
			if err != nil {
				log.Fatalf("Error migrating down: %v", err)
			}
			log.Printf("Rolled back %d migrations!", n)
		},
	}
	return cmd
}
