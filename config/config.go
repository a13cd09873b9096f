// Package config loads service configuration from a YAML file.
package config

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/memekipedia/tradecore/internal/domain"
)

// ErrNoConfig indicates no config path was provided; callers may fall back
// to the interactive setup wizard.
var ErrNoConfig = errors.New("no config file provided")

const (
	defaultFeeBps         = 30
	defaultSlippageBps    = 100
	defaultTradeDeadline  = 20 * time.Minute
	defaultConfirmTimeout = 90 * time.Second
	defaultPollInterval   = 15 * time.Second

	// curve deployment defaults of the product: very cheap start, one
	// billion tokens
	defaultBasePrice = "0.00000001"
	defaultSlope     = "0.000000001"
	defaultSupply    = 1_000_000_000
)

// Config is the resolved service configuration. Prices are wei-scaled.
type Config struct {
	// Platform "simulate" or "chain".
	Platform string
	// Network named chain network, used when Platform is "chain".
	Network string
	// RPCURL overrides the network default RPC endpoint.
	RPCURL string
	// ListenAddr HTTP listen address.
	ListenAddr string
	// TLSDomains enables automatic TLS when non-empty.
	TLSDomains []string

	// Pair the traded pair.
	Pair domain.Pair
	// CurveID bonding curve contract address (or logical id in simulation).
	CurveID string
	// Router swap router address, the spender for pool trades.
	Router string
	// Factory pair factory address.
	Factory string
	// Tokens symbol to token contract address.
	Tokens map[string]string
	// Participant the account trades are executed for.
	Participant string

	BasePrice       *big.Int
	Slope           *big.Int
	AvailableSupply *big.Int

	FeeBps              int64
	SlippageBps         int64
	TradeDeadline       time.Duration
	ConfirmTimeout      time.Duration
	PollBalanceInterval time.Duration
	WalDir              string
}

// FileConfig is the raw YAML shape of the config file, also used by the
// setup wizard to generate one.
type FileConfig struct {
	Platform   string            `yaml:"platform"`
	Network    string            `yaml:"network,omitempty"`
	RPCURL     string            `yaml:"rpc_url,omitempty"`
	ListenAddr string            `yaml:"listen_addr,omitempty"`
	TLSDomains []string          `yaml:"tls_domains,omitempty"`
	Pair       string            `yaml:"pair"`
	CurveID    string            `yaml:"curve_id,omitempty"`
	Router     string            `yaml:"router,omitempty"`
	Factory    string            `yaml:"factory,omitempty"`
	Tokens     map[string]string `yaml:"tokens,omitempty"`

	Participant string `yaml:"participant"`

	BasePrice       string `yaml:"base_price,omitempty"`
	Slope           string `yaml:"slope,omitempty"`
	AvailableSupply int64  `yaml:"available_supply,omitempty"`

	FeeBps              int64  `yaml:"fee_bps,omitempty"`
	SlippageBps         int64  `yaml:"slippage_bps,omitempty"`
	TradeDeadline       string `yaml:"trade_deadline,omitempty"`
	ConfirmTimeout      string `yaml:"confirm_timeout,omitempty"`
	PollBalanceInterval string `yaml:"poll_balance_interval,omitempty"`
	WalDir              string `yaml:"wal_dir,omitempty"`
}

// Get resolves the configuration from the --config flag.
func Get() (Config, error) {
	path := flag.String("config", "", "path to yaml config")
	flag.Parse()
	if *path == "" {
		return Config{}, ErrNoConfig
	}
	return Load(*path)
}

// Load reads and validates the YAML config file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}

	var y FileConfig
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse yaml config")
	}
	return y.resolve()
}

func (y FileConfig) resolve() (Config, error) {
	pair, err := PairFromString(y.Pair)
	if err != nil {
		return Config{}, err
	}

	basePrice, err := priceWei(y.BasePrice, defaultBasePrice)
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'base_price' param")
	}
	slope, err := priceWei(y.Slope, defaultSlope)
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'slope' param")
	}

	tradeDeadline, err := durationOrDefault(y.TradeDeadline, defaultTradeDeadline)
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'trade_deadline' param")
	}
	confirmTimeout, err := durationOrDefault(y.ConfirmTimeout, defaultConfirmTimeout)
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'confirm_timeout' param")
	}
	pollInterval, err := durationOrDefault(y.PollBalanceInterval, defaultPollInterval)
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'poll_balance_interval' param")
	}

	cfg := Config{
		Platform:            y.Platform,
		Network:             y.Network,
		RPCURL:              y.RPCURL,
		ListenAddr:          y.ListenAddr,
		TLSDomains:          y.TLSDomains,
		Pair:                pair,
		CurveID:             y.CurveID,
		Router:              y.Router,
		Factory:             y.Factory,
		Tokens:              y.Tokens,
		Participant:         y.Participant,
		BasePrice:           basePrice,
		Slope:               slope,
		AvailableSupply:     big.NewInt(defaultSupply),
		FeeBps:              y.FeeBps,
		SlippageBps:         y.SlippageBps,
		TradeDeadline:       tradeDeadline,
		ConfirmTimeout:      confirmTimeout,
		PollBalanceInterval: pollInterval,
		WalDir:              y.WalDir,
	}

	if cfg.Platform == "" {
		cfg.Platform = "simulate"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if y.AvailableSupply > 0 {
		cfg.AvailableSupply = big.NewInt(y.AvailableSupply)
	}
	if cfg.FeeBps <= 0 {
		cfg.FeeBps = defaultFeeBps
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = defaultSlippageBps
	}
	if cfg.WalDir == "" {
		cfg.WalDir = "./wal"
	}
	if cfg.Participant == "" {
		return Config{}, errors.New("'participant' param is required")
	}
	return cfg, nil
}

// PairFromString parses "WIKI_M" into a pair. The quote side is the native
// coin when its symbol is "M".
func PairFromString(s string) (domain.Pair, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.Pair{}, fmt.Errorf("invalid 'pair' param: %q, expected BASE_QUOTE", s)
	}

	return domain.Pair{
		Base:  domain.Asset{Symbol: parts[0], Decimals: 18},
		Quote: domain.Asset{Symbol: parts[1], Native: parts[1] == "M"},
	}, nil
}

func durationOrDefault(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// priceWei parses a human-unit decimal price into wei.
func priceWei(s, fallback string) (*big.Int, error) {
	if s == "" {
		s = fallback
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, errors.New("price must not be negative")
	}
	return d.Shift(18).BigInt(), nil
}
