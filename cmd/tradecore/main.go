// Command tradecore runs the token pricing and exchange node: bonding curve
// and pool quoting, slippage-bounded trade execution and balance tracking,
// exposed over an HTTP API.
//
// Usage:
//
//	tradecore --config config.yaml
//	tradecore (launches the setup wizard)
//
// Required environment variables:
//
//	For the chain platform: TRADECORE_PRIVATE_KEY
package main

import (
	"context"
	"errors"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/memekipedia/tradecore/config"
	"github.com/memekipedia/tradecore/internal/allowance"
	"github.com/memekipedia/tradecore/internal/app"
	"github.com/memekipedia/tradecore/internal/chain"
	"github.com/memekipedia/tradecore/internal/domain"
	"github.com/memekipedia/tradecore/internal/events"
	"github.com/memekipedia/tradecore/internal/executor"
	"github.com/memekipedia/tradecore/internal/quote"
	"github.com/memekipedia/tradecore/internal/reconciler"
	"github.com/memekipedia/tradecore/internal/settlement"
	"github.com/memekipedia/tradecore/internal/setup"
	"github.com/memekipedia/tradecore/internal/web"
)

func main() {
	cfg, err := config.Get()
	if errors.Is(err, config.ErrNoConfig) {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		cfg, err = config.Load("config.gen.yaml")
	}
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		settle    executor.Settlement
		pools     executor.PoolReader
		reader    allowance.Reader
		submitter allowance.Submitter
		balances  reconciler.BalanceReader
		curveSeed *domain.CurveState
	)

	switch cfg.Platform {
	case "simulate":
		ledger := settlement.NewLedger(logger)
		if cfg.CurveID == "" {
			cfg.CurveID = "curve-sim"
		}
		if cfg.Router == "" {
			// the spender label the simulated ledger charges pool swaps against
			cfg.Router = "router"
		}
		curveSeed, err = domain.NewCurveState(cfg.BasePrice, cfg.Slope, cfg.AvailableSupply)
		if err != nil {
			log.Fatal(err)
		}
		ledger.RegisterCurve(cfg.CurveID, curveSeed)
		// fund the participant so trades settle out of the box
		ledger.SetBalance(cfg.Participant, cfg.Pair.Quote, quoteUnits(1000))
		settle, pools, reader, submitter, balances = ledger, ledger, ledger, ledger, ledger
	case "chain":
		network := chain.NetworkByName(cfg.Network)
		if cfg.RPCURL != "" {
			network.RPCURL = cfg.RPCURL
		}
		network.Router = common.HexToAddress(cfg.Router)
		network.Factory = common.HexToAddress(cfg.Factory)
		network.Tokens = make(map[string]common.Address, len(cfg.Tokens))
		for symbol, addr := range cfg.Tokens {
			network.Tokens[symbol] = common.HexToAddress(addr)
		}

		key := os.Getenv("TRADECORE_PRIVATE_KEY")
		if key == "" {
			log.Fatal("TRADECORE_PRIVATE_KEY environment variable must be set")
		}

		client, err := chain.NewClient(ctx, network, key, logger)
		if err != nil {
			log.Fatal(err)
		}
		defer client.Close()

		if cfg.CurveID != "" {
			curveSeed, err = client.ReadCurveState(ctx, cfg.CurveID, cfg.Pair, cfg.BasePrice, cfg.Slope)
			if err != nil {
				log.Fatal(err)
			}
		}
		settle, pools, reader, submitter, balances = client, client, client, client, client
	default:
		log.Fatal("unsupported platform")
	}

	registry := executor.NewRegistry()
	if curveSeed != nil {
		registry.Register(cfg.CurveID, curveSeed)
	}

	engine := quote.NewEngine(cfg.FeeBps)
	gate := allowance.NewGate(reader, submitter, logger)
	broadcaster := events.NewBalanceBroadcaster(64)

	rec := reconciler.New(balances, broadcaster, cfg.PollBalanceInterval, logger)
	rec.Track(cfg.Participant, cfg.Pair)

	exec, err := executor.NewExecutor(logger, engine, registry, settle, pools, gate, rec,
		cfg.WalDir, cfg.ConfirmTimeout, cfg.Router)
	if err != nil {
		log.Fatal(err)
	}
	defer exec.Close()

	exchange := app.NewExchange(logger, engine, exec, rec, pools)
	server := web.NewServer(logger, cfg.ListenAddr, exchange, broadcaster,
		cfg.Participant, cfg.Pair, cfg.CurveID, cfg.SlippageBps, cfg.TradeDeadline)

	go func() {
		if err := rec.Run(ctx); err != nil {
			logger.Error("reconciler stopped", zap.Error(err))
		}
	}()

	logger.Info("tradecore started",
		zap.String("platform", cfg.Platform),
		zap.String("pair", cfg.Pair.String()),
		zap.String("listen", cfg.ListenAddr))

	if len(cfg.TLSDomains) > 0 {
		err = server.StartWithAutoTLS(ctx, cfg.TLSDomains, "cert-cache")
	} else {
		err = server.Start(ctx)
	}
	if err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// quoteUnits converts whole quote coins to wei.
func quoteUnits(n int64) *big.Int {
	wei := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return wei.Mul(wei, big.NewInt(n))
}
