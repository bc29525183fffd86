package config

import (
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// MustLoad loads the configuration from environment variables and .env file.
func MustLoad[T any](cfg T, files ...string) {
	env.Must(cfg, Load(cfg, files...))
}

// Load reads the given .env files (default ".env") into the environment and
// parses cfg. Missing .env files are not an error.
func Load[T any](cfg T, files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "load .env")
	}
	if err := env.Parse(cfg); err != nil {
		return errors.Wrap(err, "parse environment")
	}
	return nil
}

// Config holds everything the client needs to reach both ledgers and the
// local stores.
type Config struct {
	ProgramID         solana.PublicKey `env:"PROGRAM_ID" envDefault:"FASTz9tarYt7xR67mA2zDtr15iQqjsDoU4FxyUrZG8vb"`
	DelegationProgram solana.PublicKey `env:"DELEGATION_PROGRAM_ID" envDefault:"DELeGGvXpWV2fqJUhqcF5ZSYMS4JTLjteaAMARRSaeSh"`
	MagicProgram      solana.PublicKey `env:"MAGIC_PROGRAM_ID" envDefault:"Magic11111111111111111111111111111111111111"`
	MagicContext      solana.PublicKey `env:"MAGIC_CONTEXT_ID" envDefault:"MagicContext1111111111111111111111111111111"`

	BaseMint  solana.PublicKey `env:"BASE_MINT" envDefault:"So11111111111111111111111111111111111111112"`
	QuoteMint solana.PublicKey `env:"QUOTE_MINT" envDefault:"G1vK94GMUtw3cTYHzDiaPox4uGtgsCMJXZ8epi4WgYJZ"`
	// Market overrides the derived market address when set.
	Market solana.PublicKey `env:"MARKET"`
	// MarketDiscriminant, when non-zero, is checked against every fetched header.
	MarketDiscriminant uint64 `env:"MARKET_DISCRIMINANT" envDefault:"0"`

	Keypair string `env:"KEYPAIR,expand" envDefault:"${HOME}/.config/solana/id.json"`
	DataDir string `env:"DATA_DIR" envDefault:".manifest"`

	Ledger LedgerConfig `envPrefix:"LEDGER_"`
	Kafka  KafkaConfig  `envPrefix:"KAFKA_"`

	WatchInterval time.Duration `env:"WATCH_INTERVAL" envDefault:"5s"`
	BookLimit     int           `env:"BOOK_LIMIT" envDefault:"50"`
	GRPCAddr      string        `env:"GRPC_ADDR" envDefault:":50051"`
	MetricsAddr   string        `env:"METRICS_ADDR" envDefault:":9090"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
}

// LedgerConfig holds the RPC endpoints of the base ledger and the rollup.
type LedgerConfig struct {
	BaseRPC   string `env:"BASE_RPC" envDefault:"https://api.devnet.solana.com"`
	RollupRPC string `env:"ROLLUP_RPC" envDefault:"https://devnet.magicblock.app/"`
	RollupWS  string `env:"ROLLUP_WS" envDefault:"wss://devnet.magicblock.app/"`
	// Commitment is one of processed, confirmed, finalized.
	Commitment    string        `env:"COMMITMENT" envDefault:"confirmed"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"30s"`
	SkipPreflight bool          `env:"ROLLUP_SKIP_PREFLIGHT" envDefault:"true"`
}

// KafkaConfig holds the feed and event topics. An empty broker list
// disables both publishers.
type KafkaConfig struct {
	Brokers    []string `env:"BROKERS"`
	FeedTopic  string   `env:"FEED_TOPIC" envDefault:"manifest.book"`
	EventTopic string   `env:"EVENT_TOPIC" envDefault:"manifest.events"`
	// FeedFormat is json or proto.
	FeedFormat string `env:"FEED_FORMAT" envDefault:"json"`
}

// Validate rejects values the parser accepts but the client cannot use.
func (c *Config) Validate() error {
	if c.ProgramID.IsZero() {
		return errors.New("PROGRAM_ID is required")
	}
	if c.BaseMint.Equals(c.QuoteMint) {
		return errors.New("BASE_MINT and QUOTE_MINT must differ")
	}
	switch c.Ledger.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return errors.Errorf("LEDGER_COMMITMENT %q is not processed, confirmed or finalized", c.Ledger.Commitment)
	}
	switch c.Kafka.FeedFormat {
	case "json", "proto":
	default:
		return errors.Errorf("KAFKA_FEED_FORMAT %q is not json or proto", c.Kafka.FeedFormat)
	}
	if c.BookLimit < 0 {
		return errors.Errorf("BOOK_LIMIT %d is negative", c.BookLimit)
	}
	if c.WatchInterval <= 0 {
		return errors.Errorf("WATCH_INTERVAL %s must be positive", c.WatchInterval)
	}
	return nil
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
