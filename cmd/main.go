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
	"context"
	"fmt"
	"log"
	"os"

	"github.com/debitrelay/relayer"
	"github.com/debitrelay/relayer/config"
	"github.com/debitrelay/relayer/database"
	"github.com/debitrelay/relayer/internal/chain"
	"github.com/debitrelay/relayer/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// relayerInstance holds the runtime wiring shared by all subcommands.
type relayerInstance struct {
	relayer *relayer.Relayer
	cnf     *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and wires the relayer before any
// subcommand executes.
func preRun(app *relayerInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newRelayer, err := setupRelayer(cmd.Context(), cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.relayer = newRelayer
		app.cnf = cnf
		return nil
	}
}

// setupRelayer connects the data source and the configured networks and
// builds the relayer on top of them.
func setupRelayer(ctx context.Context, cfg *config.Configuration) (*relayer.Relayer, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	chainClient, err := chain.NewEthClient(ctx, cfg.Chains)
	if err != nil {
		return nil, fmt.Errorf("error connecting chain networks: %v", err)
	}

	newRelayer, err := relayer.NewRelayer(db, chainClient)
	if err != nil {
		return nil, fmt.Errorf("error creating relayer: %v", err)
	}
	return newRelayer, nil
}

// NewCLI assembles the root command and its subcommands.
func NewCLI() *cobra.Command {
	var configFile string
	r := &relayerInstance{}

	var rootCmd = &cobra.Command{
		Use:   "relayer",
		Short: "Payment intent relayer",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./relayer.json", "Configuration file for the relayer")
	rootCmd.PersistentPreRunE = preRun(r, &configFile)

	rootCmd.AddCommand(workerCommands(r))
	rootCmd.AddCommand(migrateCommands())

	return rootCmd
}

func main() {
	defer recoverPanic()

	if err := NewCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
