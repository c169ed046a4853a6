package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/insdexer/indexer/pkg/inscription"
	"github.com/insdexer/indexer/pkg/sync"
)

type Consensus struct {
	Validators []string
	Ppc        time.Duration // leader status wait (Case-2)
	Delta      time.Duration // network upper bound
}

type Node struct {
	SingleNode bool
	// MinBlockTime throttles block production to prevent excessive empty blocks
	// in single-node devnet with fast-path enabled.
	MinBlockTime time.Duration
}

// Chain bundles the RPC endpoint and confirmation policy the sync worker
// is built against.
type Chain struct {
	RPCURL          string
	ChainID         uint64
	StartBlock      uint64
	WorkerCount     int
	BufferLength    int
	ConfirmBlocks   uint64
	FinalizedBlocks uint64
}

// Checkpoint bundles the periodic-snapshot policy.
type Checkpoint struct {
	Path   string
	Span   uint64
	Retain int
}

// Protocol bundles the inscription protocol parameters: which contract
// addresses are the marketplace, what JSON "p" value identifies the
// fungible token protocol, and the tick/mint constraints.
type Protocol struct {
	MarketAddrs    map[string]bool
	TokenProtocol  string
	TickMaxLen     int
	StartBlockMint uint64
	Reindex        bool
}

// Storage bundles the on-disk database location.
type Storage struct {
	DBPath string
}

// Log bundles the structured logging sink.
type Log struct {
	Level   string
	LogFile string
}

type Config struct {
	Consensus  Consensus
	Node       Node
	Chain      Chain
	Checkpoint Checkpoint
	Protocol   Protocol
	Storage    Storage
	Log        Log
}

func Default() Config {
	return Config{
		Consensus: Consensus{
			Validators: []string{"val1", "val2", "val3", "val4"},
			Ppc:        150 * time.Millisecond,
			Delta:      50 * time.Millisecond,
		},
		Node: Node{
			SingleNode:   true,
			MinBlockTime: 200 * time.Millisecond, // Devnet default: prevent log spam
		},
		Chain: Chain{
			RPCURL:          "http://127.0.0.1:8545",
			StartBlock:      0,
			WorkerCount:     8,
			BufferLength:    64,
			ConfirmBlocks:   3,
			FinalizedBlocks: 64,
		},
		Checkpoint: Checkpoint{
			Path:   "data/checkpoints",
			Span:   5000,
			Retain: 5,
		},
		Protocol: Protocol{
			MarketAddrs:    map[string]bool{},
			TokenProtocol:  "insc-20",
			TickMaxLen:     16,
			StartBlockMint: 0,
			Reindex:        false,
		},
		Storage: Storage{
			DBPath: "data/db",
		},
		Log: Log{
			Level:   "info",
			LogFile: "data/indexer.log",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	// Override with environment variables
	if ppc := os.Getenv("CONSENSUS_PPC_MS"); ppc != "" {
		if ms, err := strconv.Atoi(ppc); err == nil {
			cfg.Consensus.Ppc = time.Duration(ms) * time.Millisecond
		}
	}

	if delta := os.Getenv("CONSENSUS_DELTA_MS"); delta != "" {
		if ms, err := strconv.Atoi(delta); err == nil {
			cfg.Consensus.Delta = time.Duration(ms) * time.Millisecond
		}
	}

	if minBlock := os.Getenv("NODE_MIN_BLOCK_TIME_MS"); minBlock != "" {
		if ms, err := strconv.Atoi(minBlock); err == nil {
			cfg.Node.MinBlockTime = time.Duration(ms) * time.Millisecond
		}
	}
	if singleNode := os.Getenv("SINGLE_NODE"); singleNode != "" {
		cfg.Node.SingleNode = singleNode == "true"
	}

	// Validators from comma-separated list
	if vals := os.Getenv("CONSENSUS_VALIDATORS"); vals != "" {
		cfg.Consensus.Validators = strings.Split(vals, ",")
	}

	if rpc := os.Getenv("WEB3_PROVIDER"); rpc != "" {
		cfg.Chain.RPCURL = rpc
	}
	if chainID := getEnvU64("CHAIN_ID"); chainID != nil {
		cfg.Chain.ChainID = *chainID
	}
	if startBlock := getEnvU64("START_BLOCK"); startBlock != nil {
		cfg.Chain.StartBlock = *startBlock
	}
	if n := os.Getenv("WORKER_COUNT"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cfg.Chain.WorkerCount = v
		}
	}
	if n := os.Getenv("WORKER_BUFFER_LENGTH"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cfg.Chain.BufferLength = v
		}
	}
	if confirm := getEnvU64("CONFIRM_BLOCK"); confirm != nil {
		cfg.Chain.ConfirmBlocks = *confirm
	}
	if fin := getEnvU64("FINALIZED_BLOCK"); fin != nil {
		cfg.Chain.FinalizedBlocks = *fin
	}

	if path := os.Getenv("CHECKPOINT_PATH"); path != "" {
		cfg.Checkpoint.Path = path
	}
	if span := getEnvU64("CHECKPOINT_SPAN"); span != nil {
		cfg.Checkpoint.Span = *span
	}
	if retain := os.Getenv("CHECKPOINT_RETAIN"); retain != "" {
		if v, err := strconv.Atoi(retain); err == nil {
			cfg.Checkpoint.Retain = v
		}
	}

	if addrs := os.Getenv("MARKET_ADDRESS_LIST"); addrs != "" {
		m := make(map[string]bool)
		for _, a := range strings.Split(addrs, ",") {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				m[a] = true
			}
		}
		cfg.Protocol.MarketAddrs = m
	}
	if proto := os.Getenv("TOKEN_PROTOCOL"); proto != "" {
		cfg.Protocol.TokenProtocol = proto
	}
	if n := os.Getenv("TICK_MAX_LEN"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cfg.Protocol.TickMaxLen = v
		}
	}
	if startMint := getEnvU64("START_BLOCK_MINT"); startMint != nil {
		cfg.Protocol.StartBlockMint = *startMint
	}
	if reindex := os.Getenv("REINDEX"); reindex != "" {
		cfg.Protocol.Reindex = reindex == "true"
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Log.LogFile = logFile
	}

	return cfg
}

// SyncConfig adapts the loaded config into pkg/sync's fetch-stage Config.
func (c Config) SyncConfig() sync.Config {
	return sync.Config{
		StartBlock:      c.Chain.StartBlock,
		WorkerCount:     c.Chain.WorkerCount,
		BufferLength:    c.Chain.BufferLength,
		ConfirmBlocks:   c.Chain.ConfirmBlocks,
		FinalizedBlocks: c.Chain.FinalizedBlocks,
		MarketAddrs:     c.Protocol.MarketAddrs,
	}
}

// InscriptionConfig adapts the loaded config into pkg/inscription's
// protocol Config.
func (c Config) InscriptionConfig() inscription.Config {
	return inscription.Config{
		MarketAddrs:    c.Protocol.MarketAddrs,
		TokenProtocol:  c.Protocol.TokenProtocol,
		TickMaxLen:     c.Protocol.TickMaxLen,
		StartBlockMint: c.Protocol.StartBlockMint,
	}
}

// LogLevel parses the configured log level, defaulting to info.
func (c Config) LogLevel() zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func getEnvU64(key string) *uint64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
