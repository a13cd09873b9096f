// Package chain adapts the EVM settlement layer to the collaborator
// interfaces of the pricing core: balances, allowances, pool reserves and
// trade submission against the curve and router contracts.
package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/memekipedia/tradecore/internal/domain"
	"github.com/memekipedia/tradecore/internal/executor"
)

const (
	receiptPollInterval = 2 * time.Second
	defaultGasLimit     = 300_000
)

// Client implements the settlement, balance, allowance and pool collaborator
// interfaces against an EVM chain via go-ethereum.
type Client struct {
	cfg    NetworkConfig
	eth    *ethclient.Client
	key    *ecdsa.PrivateKey
	sender common.Address
	logger *zap.Logger

	erc20ABI   abi.ABI
	curveABI   abi.ABI
	factoryABI abi.ABI
	pairABI    abi.ABI
	routerABI  abi.ABI

	mu  sync.Mutex
	txs map[string]common.Hash
}

// NewClient dials the RPC endpoint and prepares the signing key. The key
// signs authorization and trade transactions on behalf of the service.
func NewClient(ctx context.Context, cfg NetworkConfig, privateKeyHex string, logger *zap.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", cfg.RPCURL)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}

	c := &Client{
		cfg:    cfg,
		eth:    eth,
		key:    key,
		sender: crypto.PubkeyToAddress(key.PublicKey),
		logger: logger,
		txs:    make(map[string]common.Hash),
	}

	for _, p := range []struct {
		dst  *abi.ABI
		json string
	}{
		{&c.erc20ABI, erc20ABIJSON},
		{&c.curveABI, curveABIJSON},
		{&c.factoryABI, factoryABIJSON},
		{&c.pairABI, pairABIJSON},
		{&c.routerABI, routerABIJSON},
	} {
		parsed, err := abi.JSON(strings.NewReader(p.json))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse contract ABI")
		}
		*p.dst = parsed
	}

	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// ReadBalance reads the native or token balance of a participant.
func (c *Client) ReadBalance(ctx context.Context, participant string, asset domain.Asset) (*big.Int, error) {
	addr := common.HexToAddress(participant)
	if asset.Native {
		return c.eth.BalanceAt(ctx, addr, nil)
	}

	token, err := c.tokenAddress(asset)
	if err != nil {
		return nil, err
	}

	var out *big.Int
	if err := c.call(ctx, c.erc20ABI, token, "balanceOf", &out, addr); err != nil {
		return nil, errors.Wrapf(err, "balanceOf %s failed", asset.Symbol)
	}
	return fromUnits(asset, out), nil
}

// ReadAllowance reads the live approved amount for an owner/spender pair.
func (c *Client) ReadAllowance(ctx context.Context, owner, spender string, asset domain.Asset) (*big.Int, error) {
	token, err := c.tokenAddress(asset)
	if err != nil {
		return nil, err
	}

	var out *big.Int
	if err := c.call(ctx, c.erc20ABI, token, "allowance", &out,
		common.HexToAddress(owner), common.HexToAddress(spender)); err != nil {
		return nil, errors.Wrapf(err, "allowance %s failed", asset.Symbol)
	}
	return fromUnits(asset, out), nil
}

// Authorize submits an approve transaction and waits for its receipt, so the
// caller observes real confirmation rather than a timer guess.
func (c *Client) Authorize(ctx context.Context, owner, spender string, asset domain.Asset, amount *big.Int) error {
	token, err := c.tokenAddress(asset)
	if err != nil {
		return err
	}

	input, err := c.erc20ABI.Pack("approve", common.HexToAddress(spender), toUnits(asset, amount))
	if err != nil {
		return errors.Wrap(err, "failed to pack approve")
	}

	tx, err := c.sendTransaction(ctx, token, input, nil)
	if err != nil {
		return errors.Wrap(err, "approve transaction failed")
	}

	receipt, err := c.waitMined(ctx, tx.Hash(), 0)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return errors.New("approve transaction reverted")
	}

	c.logger.Info("token approval confirmed",
		zap.String("asset", asset.Symbol),
		zap.String("spender", spender),
		zap.String("tx", tx.Hash().Hex()))
	return nil
}

// ReadPoolReserves resolves the pair through the factory and reads its
// reserves ordered as (base, quote). Returns nil when no pool exists.
func (c *Client) ReadPoolReserves(ctx context.Context, pair domain.Pair) (*domain.PoolReserves, error) {
	baseToken, err := c.tokenAddress(pair.Base)
	if err != nil {
		return nil, err
	}
	quoteToken, err := c.tokenAddress(pair.Quote)
	if err != nil {
		return nil, err
	}

	var pairAddr common.Address
	if err := c.call(ctx, c.factoryABI, c.cfg.Factory, "getPair", &pairAddr, baseToken, quoteToken); err != nil {
		return nil, errors.Wrap(err, "getPair failed")
	}
	if pairAddr == (common.Address{}) {
		return nil, nil
	}

	var reserves struct {
		Reserve0           *big.Int
		Reserve1           *big.Int
		BlockTimestampLast uint32
	}
	if err := c.callRaw(ctx, c.pairABI, pairAddr, "getReserves", func(vals []interface{}) {
		reserves.Reserve0 = vals[0].(*big.Int)
		reserves.Reserve1 = vals[1].(*big.Int)
	}); err != nil {
		return nil, errors.Wrap(err, "getReserves failed")
	}

	var token0 common.Address
	if err := c.call(ctx, c.pairABI, pairAddr, "token0", &token0); err != nil {
		return nil, errors.Wrap(err, "token0 failed")
	}

	block, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read block number")
	}

	reserveBase, reserveQuote := reserves.Reserve0, reserves.Reserve1
	if token0 != baseToken {
		reserveBase, reserveQuote = reserves.Reserve1, reserves.Reserve0
	}

	return &domain.PoolReserves{
		ReserveBase:  fromUnits(pair.Base, reserveBase),
		ReserveQuote: fromUnits(pair.Quote, reserveQuote),
		Block:        block,
	}, nil
}

// ReadCurveState reads the on-chain curve position and combines it with the
// deployed pricing parameters into a local mirror state. The contract does not
// expose basePrice and slope, those come from the deployment config.
func (c *Client) ReadCurveState(ctx context.Context, curveID string, pair domain.Pair, basePrice, slope *big.Int) (*domain.CurveState, error) {
	var info struct {
		CurrentPrice    *big.Int
		Sold            *big.Int
		Reserve         *big.Int
		AvailableSupply *big.Int
	}
	if err := c.callRaw(ctx, c.curveABI, common.HexToAddress(curveID), "getCurveInfo", func(vals []interface{}) {
		info.CurrentPrice = vals[0].(*big.Int)
		info.Sold = vals[1].(*big.Int)
		info.Reserve = vals[2].(*big.Int)
		info.AvailableSupply = vals[3].(*big.Int)
	}); err != nil {
		return nil, errors.Wrap(err, "getCurveInfo failed")
	}

	sold := fromUnits(pair.Base, info.Sold)
	supply := new(big.Int).Add(fromUnits(pair.Base, info.AvailableSupply), sold)

	state, err := domain.NewCurveState(basePrice, slope, supply)
	if err != nil {
		return nil, err
	}
	state.TokensSold = sold
	state.ReserveQuote = info.Reserve
	return state, nil
}

// Submit sends the trade transaction: a curve buy/sell call, or a router swap
// for pool trades.
func (c *Client) Submit(ctx context.Context, desc executor.TradeDescriptor) (executor.SubmitReceipt, error) {
	var (
		tx  *types.Transaction
		err error
	)
	if desc.CurveID != "" {
		tx, err = c.submitCurveTrade(ctx, desc)
	} else {
		tx, err = c.submitPoolTrade(ctx, desc)
	}
	if err != nil {
		return executor.SubmitReceipt{Status: executor.SubmitFailed}, err
	}

	ref := tx.Hash().Hex()
	c.mu.Lock()
	c.txs[ref] = tx.Hash()
	c.mu.Unlock()

	c.logger.Info("trade submitted",
		zap.String("intent_id", desc.ID),
		zap.String("tx", ref))
	return executor.SubmitReceipt{Status: executor.SubmitPending, Ref: ref}, nil
}

// AwaitConfirmation polls for the transaction receipt until the timeout.
// A timeout does not mean the transaction failed.
func (c *Client) AwaitConfirmation(ctx context.Context, ref string, timeout time.Duration) (executor.ConfirmationStatus, error) {
	receipt, err := c.waitMined(ctx, common.HexToHash(ref), timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return executor.ConfirmationTimeout, nil
		}
		return executor.ConfirmationTimeout, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return executor.ConfirmationFailed, nil
	}
	return executor.ConfirmationConfirmed, nil
}

func (c *Client) submitCurveTrade(ctx context.Context, desc executor.TradeDescriptor) (*types.Transaction, error) {
	curveAddr := common.HexToAddress(desc.CurveID)
	tokens := toUnits(desc.Pair.Base, desc.AmountTokens)

	if desc.Mode == domain.ModeBuy {
		// the buy is payable: the max input travels as transaction value
		input, err := c.curveABI.Pack("buy", tokens, desc.BoundAmount)
		if err != nil {
			return nil, errors.Wrap(err, "failed to pack curve buy")
		}
		return c.sendTransaction(ctx, curveAddr, input, desc.BoundAmount)
	}

	input, err := c.curveABI.Pack("sell", tokens, desc.BoundAmount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack curve sell")
	}
	return c.sendTransaction(ctx, curveAddr, input, nil)
}

func (c *Client) submitPoolTrade(ctx context.Context, desc executor.TradeDescriptor) (*types.Transaction, error) {
	baseToken, err := c.tokenAddress(desc.Pair.Base)
	if err != nil {
		return nil, err
	}
	quoteToken, err := c.tokenAddress(desc.Pair.Quote)
	if err != nil {
		return nil, err
	}

	var (
		amountIn, amountOutMin *big.Int
		path                   []common.Address
	)
	if desc.Mode == domain.ModeBuy {
		// bound is the max quote input; the router enforces the min output
		amountIn = toUnits(desc.Pair.Quote, desc.BoundAmount)
		amountOutMin = toUnits(desc.Pair.Base, desc.AmountTokens)
		path = []common.Address{quoteToken, baseToken}
	} else {
		amountIn = toUnits(desc.Pair.Base, desc.AmountTokens)
		amountOutMin = toUnits(desc.Pair.Quote, desc.BoundAmount)
		path = []common.Address{baseToken, quoteToken}
	}

	deadline := big.NewInt(time.Now().Add(20 * time.Minute).Unix())
	input, err := c.routerABI.Pack("swapExactTokensForTokens",
		amountIn, amountOutMin, path, common.HexToAddress(desc.Participant), deadline)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack router swap")
	}
	return c.sendTransaction(ctx, c.cfg.Router, input, nil)
}

func (c *Client) sendTransaction(ctx context.Context, to common.Address, input []byte, value *big.Int) (*types.Transaction, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pending nonce")
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to suggest gas price")
	}
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      defaultGasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(c.cfg.ChainID)), c.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, errors.Wrap(err, "failed to send transaction")
	}
	return signed, nil
}

// waitMined polls for a receipt. A zero timeout waits until ctx is done.
func (c *Client) waitMined(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrap(err, "failed to read receipt")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) call(ctx context.Context, contractABI abi.ABI, to common.Address, method string, out interface{}, args ...interface{}) error {
	return c.callRaw(ctx, contractABI, to, method, func(vals []interface{}) {
		switch dst := out.(type) {
		case **big.Int:
			*dst = vals[0].(*big.Int)
		case *common.Address:
			*dst = vals[0].(common.Address)
		}
	}, args...)
}

func (c *Client) callRaw(ctx context.Context, contractABI abi.ABI, to common.Address, method string, assign func([]interface{}), args ...interface{}) error {
	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to pack %s", method)
	}

	output, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return errors.Wrapf(err, "call %s failed", method)
	}

	vals, err := contractABI.Unpack(method, output)
	if err != nil {
		return errors.Wrapf(err, "failed to unpack %s", method)
	}
	assign(vals)
	return nil
}

func (c *Client) tokenAddress(asset domain.Asset) (common.Address, error) {
	if asset.Native {
		return common.Address{}, errors.Errorf("native asset %s has no token contract", asset.Symbol)
	}
	addr, ok := c.cfg.Tokens[asset.Symbol]
	if !ok {
		return common.Address{}, errors.Errorf("no token address configured for %s", asset.Symbol)
	}
	return addr, nil
}

// toUnits converts a core amount to the asset's chain unit.
func toUnits(asset domain.Asset, amount *big.Int) *big.Int {
	if asset.Decimals == 0 {
		return new(big.Int).Set(amount)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(asset.Decimals)), nil)
	return new(big.Int).Mul(amount, scale)
}

// fromUnits converts a chain-unit amount back to core units, truncating dust.
func fromUnits(asset domain.Asset, amount *big.Int) *big.Int {
	if asset.Decimals == 0 {
		return new(big.Int).Set(amount)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(asset.Decimals)), nil)
	return new(big.Int).Div(amount, scale)
}
