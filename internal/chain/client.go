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

package chain

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/debitrelay/relayer/config"
	"github.com/debitrelay/relayer/model"
)

const rpcTimeout = 10 * time.Second

// directDebitABI is the single contract entry point the relayer calls. The
// debit tuple is [maxDebitAmount, debitTimes, debitInterval, actualDebitedAmount].
const directDebitABI = `[{"inputs":[{"internalType":"bytes","name":"proof","type":"bytes"},{"internalType":"bytes","name":"publicSignals","type":"bytes"},{"internalType":"address","name":"payee","type":"address"},{"internalType":"uint256[4]","name":"debit","type":"uint256[4]"}],"name":"directDebit","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// networkClient holds the connection, contract binding and signer for one
// network.
type networkClient struct {
	client       *ethclient.Client
	contract     *bind.BoundContract
	contractAddr common.Address
	auth         *bind.TransactOpts
}

// EthClient implements Client over go-ethereum, one connection per
// configured network.
type EthClient struct {
	mu       sync.Mutex
	abi      abi.ABI
	networks map[string]*networkClient
}

// NewEthClient dials every configured network and prepares its contract
// binding and transaction signer.
func NewEthClient(ctx context.Context, chains map[string]config.ChainConfig) (*EthClient, error) {
	parsed, err := abi.JSON(strings.NewReader(directDebitABI))
	if err != nil {
		return nil, errors.Wrap(err, "parsing direct debit ABI")
	}

	c := &EthClient{abi: parsed, networks: make(map[string]*networkClient)}
	for network, chainCfg := range chains {
		nc, err := connect(ctx, parsed, chainCfg)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to connect to network %s", network)
		}
		c.networks[network] = nc
		logrus.Infof("connected to network %s at %s", network, chainCfg.RpcUrl)
	}
	return c, nil
}

func connect(ctx context.Context, parsed abi.ABI, chainCfg config.ChainConfig) (*networkClient, error) {
	client, err := ethclient.Dial(chainCfg.RpcUrl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to client")
	}

	privateKey, err := crypto.HexToECDSA(chainCfg.RelayerKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse relayer key")
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chain ID")
	}
	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transactor")
	}

	contractAddr := common.HexToAddress(chainCfg.ContractAddress)
	contract := bind.NewBoundContract(contractAddr, parsed, client, client, client)

	return &networkClient{
		client:       client,
		contract:     contract,
		contractAddr: contractAddr,
		auth:         auth,
	}, nil
}

func (c *EthClient) network(network string) (*networkClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nc, ok := c.networks[network]
	if !ok {
		return nil, errors.Errorf("network %s is not configured", network)
	}
	return nc, nil
}

// EstimateFixedPaymentGas estimates relaying the intent's full max debit
// amount and checks the fee against the payee's pooled relayer balance.
func (c *EthClient) EstimateFixedPaymentGas(ctx context.Context, args FixedEstimateArgs) *FixedGasEstimate {
	est := &FixedGasEstimate{}

	gasLimit, gasPrice, err := c.estimateRelay(ctx, args.Network, RelayArgs{
		Proof:             args.Proof,
		PublicSignals:     args.PublicSignals,
		PayeeAddress:      args.Intent.PayeeAddress,
		MaxDebitAmount:    args.Intent.MaxDebitAmount,
		ActualDebitAmount: args.Intent.MaxDebitAmount,
		DebitTimes:        args.Intent.DebitTimes,
		DebitInterval:     args.Intent.DebitInterval,
	})
	if err != nil {
		logrus.Errorf("fixed payment gas estimation failed for %s: %v", args.Intent.PaymentIntent, err)
		est.Errored = true
		est.AccountBalanceEnough = accountCovers(args.Intent.Account, args.Intent.MaxDebitAmount)
		return est
	}

	est.GasLimit = gasLimit
	est.GasPrice = gasPrice
	est.TotalFee = new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	est.AccountBalanceEnough = accountCovers(args.Intent.Account, args.Intent.MaxDebitAmount)

	balance, err := args.RelayerBalance.BalanceForNetwork(args.Network)
	if err != nil {
		logrus.Error(err)
		est.Errored = true
		return est
	}
	relayerUnits, err := model.ParseUnits(balance)
	if err != nil {
		logrus.Error(err)
		est.Errored = true
		return est
	}
	est.RelayerBalanceEnough = relayerUnits.Cmp(est.TotalFee) >= 0
	return est
}

// EstimateDynamicPaymentGas estimates relaying the requested amount and
// checks the fee against the gas already reserved for this job.
func (c *EthClient) EstimateDynamicPaymentGas(ctx context.Context, args DynamicEstimateArgs) *DynamicGasEstimate {
	est := &DynamicGasEstimate{}

	gasLimit, gasPrice, err := c.estimateRelay(ctx, args.Network, RelayArgs{
		Proof:             args.Proof,
		PublicSignals:     args.PublicSignals,
		PayeeAddress:      args.Intent.PayeeAddress,
		MaxDebitAmount:    args.Intent.MaxDebitAmount,
		ActualDebitAmount: args.RequestedAmount,
		DebitTimes:        args.Intent.DebitTimes,
		DebitInterval:     args.Intent.DebitInterval,
	})
	if err != nil {
		logrus.Errorf("dynamic payment gas estimation failed for %s: %v", args.Intent.PaymentIntent, err)
		est.Errored = true
		est.AccountBalanceEnough = accountCovers(args.Intent.Account, args.RequestedAmount)
		return est
	}

	est.GasLimit = gasLimit
	est.GasPrice = gasPrice
	est.AccountBalanceEnough = accountCovers(args.Intent.Account, args.RequestedAmount)

	allocated, err := model.ParseUnits(args.AllocatedGas)
	if err != nil {
		logrus.Error(err)
		est.Errored = true
		return est
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	est.AllocatedGasEnough = allocated.Cmp(fee) >= 0
	return est
}

// SubmitRelay sends the direct debit transaction with the gas parameters the
// estimation approved. The returned error is the submission failure the
// handlers branch on.
func (c *EthClient) SubmitRelay(ctx context.Context, args RelayArgs, network string, gasLimit uint64, gasPrice *big.Int) (PendingTransaction, error) {
	nc, err := c.network(network)
	if err != nil {
		return nil, err
	}

	payee, debit, err := relayCallArgs(args)
	if err != nil {
		return nil, err
	}

	opts := *nc.auth
	opts.Context = ctx
	opts.GasLimit = gasLimit
	opts.GasPrice = gasPrice

	tx, err := nc.contract.Transact(&opts, "directDebit", []byte(args.Proof), []byte(args.PublicSignals), payee, debit)
	if err != nil {
		return nil, errors.Wrap(err, "relay submission failed")
	}
	return &pendingTransaction{tx: tx, client: nc.client}, nil
}

func (c *EthClient) estimateRelay(ctx context.Context, network string, args RelayArgs) (uint64, *big.Int, error) {
	nc, err := c.network(network)
	if err != nil {
		return 0, nil, err
	}

	payee, debit, err := relayCallArgs(args)
	if err != nil {
		return 0, nil, err
	}
	calldata, err := c.abi.Pack("directDebit", []byte(args.Proof), []byte(args.PublicSignals), payee, debit)
	if err != nil {
		return 0, nil, errors.Wrap(err, "packing direct debit calldata")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	gasLimit, err := nc.client.EstimateGas(timeoutCtx, ethereum.CallMsg{
		From: nc.auth.From,
		To:   &nc.contractAddr,
		Data: calldata,
	})
	if err != nil {
		return 0, nil, err
	}
	gasPrice, err := nc.client.SuggestGasPrice(timeoutCtx)
	if err != nil {
		return 0, nil, err
	}
	return gasLimit, gasPrice, nil
}

// relayCallArgs converts the decimal amounts and schedule of a relay
// authorization to the contract's payee address and debit tuple.
func relayCallArgs(args RelayArgs) (common.Address, [4]*big.Int, error) {
	var debit [4]*big.Int

	maxDebit, err := model.ParseUnits(args.MaxDebitAmount)
	if err != nil {
		return common.Address{}, debit, err
	}
	actualDebit, err := model.ParseUnits(args.ActualDebitAmount)
	if err != nil {
		return common.Address{}, debit, err
	}

	debit[0] = maxDebit
	debit[1] = big.NewInt(args.DebitTimes)
	debit[2] = big.NewInt(args.DebitInterval)
	debit[3] = actualDebit
	return common.HexToAddress(args.PayeeAddress), debit, nil
}

// accountCovers reports whether the debited account's balance covers the
// given decimal amount. Unparseable values count as not covered.
func accountCovers(account *model.Account, amount string) bool {
	if account == nil {
		return false
	}
	balance, err := model.ParseUnits(account.Balance)
	if err != nil {
		return false
	}
	debit, err := model.ParseUnits(amount)
	if err != nil {
		return false
	}
	return balance.Cmp(debit) >= 0
}

// pendingTransaction wraps a submitted transaction until it is mined.
type pendingTransaction struct {
	tx     *types.Transaction
	client *ethclient.Client
}

// AwaitConfirmation polls for the transaction receipt with exponential
// backoff. No overall deadline: confirmation legitimately spans multiple
// blocks, and the caller's context is the only cancellation point.
func (p *pendingTransaction) AwaitConfirmation(ctx context.Context) (*Receipt, error) {
	var receipt *types.Receipt
	operation := func() error {
		r, err := p.client.TransactionReceipt(ctx, p.tx.Hash())
		if err != nil {
			return err
		}
		receipt = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, errors.Wrapf(err, "waiting for confirmation of %s", p.tx.Hash().Hex())
	}

	fee := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
	return &Receipt{
		Success:         receipt.Status == types.ReceiptStatusSuccessful,
		ActualFee:       fee,
		TransactionHash: receipt.TxHash.Hex(),
	}, nil
}
