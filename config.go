// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hopfund/hopfund/chain"
	"github.com/hopfund/hopfund/fees"
	"github.com/hopfund/hopfund/internal/cfgutil"
	"github.com/hopfund/hopfund/planner"
	"github.com/hopfund/hopfund/swap"
	"github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "hopfund.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "hopfund.log"
	defaultKeystoreName   = "keystore.db"
	defaultKeyName        = "source"
	defaultRPCEndpoint    = "https://api.mainnet-beta.solana.com"
	defaultCommitment     = string(rpc.CommitmentConfirmed)
	defaultDuration       = 30 * time.Minute
	defaultTopology       = "chain"
	defaultDBTimeout      = 10 * time.Second

	topologyChain  = "chain"
	topologyFanOut = "fanout"
)

var (
	defaultAppDataDir = appDataDir()
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

type config struct {
	// General application behavior
	ConfigFile  *cfgutil.ExplicitString `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool                    `short:"V" long:"version" description:"Display version information and exit"`
	DataDir     string                  `short:"A" long:"appdata" description:"Application data directory holding the source key store"`
	LogDir      string                  `long:"logdir" description:"Directory to log output"`
	DebugLevel  string                  `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	DBTimeout   time.Duration           `long:"dbtimeout" description:"The timeout value to use when opening the key store"`

	// Source key options
	KeyName  string `long:"keyname" description:"Storage name of the source key"`
	ResetKey bool   `long:"resetkey" description:"Discard the stored source key and generate a new one"`

	// RPC client options
	RPCEndpoint    string        `short:"r" long:"rpcendpoint" description:"Solana JSON-RPC endpoint"`
	Commitment     string        `long:"commitment" description:"Commitment level for reads and confirmations {processed, confirmed, finalized}"`
	RPCRateLimit   float64       `long:"rpcratelimit" description:"Maximum RPC requests per second (0 disables the limit)"`
	ConfirmTimeout time.Duration `long:"confirmtimeout" description:"Maximum time to wait for a transaction confirmation"`

	// Plan options
	Recipients     []string            `short:"t" long:"recipient" description:"Recipient address (may be repeated)"`
	RecipientsFile string              `long:"recipientsfile" description:"File with one recipient address per line"`
	Amount         *cfgutil.AmountFlag `short:"a" long:"amount" description:"Total amount to distribute in SOL (0 uses the whole source balance)"`
	Duration       time.Duration       `short:"D" long:"duration" description:"Time over which the plan is spread"`
	Topology       string              `long:"topology" description:"Wallet topology {chain, fanout}"`
	Hubs           int                 `long:"hubs" description:"Number of hub wallets of the fanout topology"`
	Distributors   int                 `long:"distributors" description:"Number of distributor wallets of the fanout topology"`
	Jitter         float64             `long:"jitter" description:"Fractional jitter applied to recipient shares (0 splits evenly)"`
	Seed           uint64              `long:"seed" description:"Seed of the planning randomness (0 picks a random seed)"`
	TxFee          *cfgutil.AmountFlag `long:"txfee" description:"Fee reserved per transaction in SOL"`

	// Conversion options
	Swap        bool                `long:"swap" description:"Route the chain topology through a token conversion"`
	SwapAPI     string              `long:"swapapi" description:"Base URL of the quote/swap service"`
	SwapMint    string              `long:"swapmint" description:"Mint of the intermediate token"`
	SwapPool    string              `long:"swappool" description:"AMM pool the conversion must use"`
	SlippageBps uint16              `long:"slippagebps" description:"Slippage tolerance of each conversion in basis points"`
	SwapFee     *cfgutil.AmountFlag `long:"swapfee" description:"Priority and routing cost of one conversion in SOL on top of the transaction fee"`

	// Execution options
	DryRun         bool                    `short:"n" long:"dryrun" description:"Plan and print the funding graph without sending anything"`
	SweepOnFailure bool                    `long:"sweeponfailure" description:"Sweep every controlled wallet when the plan halts"`
	SweepTo        *cfgutil.ExplicitString `long:"sweepto" description:"Sweep destination (defaults to the source wallet)"`

	// Parsed values.
	recipients []solana.PublicKey
	swapMint   solana.PublicKey
	swapPool   solana.PublicKey
	sweepTo    solana.PublicKey
}

// appDataDir returns the default application data directory.
func appDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "hopfund")
	}
	return "."
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = strings.Replace(path, "~", homeDir, 1)
		}
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but they variables can still be expanded via POSIX-style
	// $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace":
		fallthrough
	case "debug":
		fallthrough
	case "info":
		fallthrough
	case "warn":
		fallthrough
	case "error":
		fallthrough
	case "critical":
		fallthrough
	case "off":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsytems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "the specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// defaultConfig returns the configuration used before any file or command
// line option is applied.
func defaultConfig() config {
	return config{
		ConfigFile:     cfgutil.NewExplicitString(defaultConfigFile),
		DebugLevel:     defaultLogLevel,
		DataDir:        defaultAppDataDir,
		LogDir:         defaultLogDir,
		DBTimeout:      defaultDBTimeout,
		KeyName:        defaultKeyName,
		RPCEndpoint:    defaultRPCEndpoint,
		Commitment:     defaultCommitment,
		RPCRateLimit:   chain.DefaultRequestsPerSecond,
		ConfirmTimeout: chain.DefaultConfirmTimeout,
		Amount:         cfgutil.NewAmountFlag(0),
		Duration:       defaultDuration,
		Topology:       defaultTopology,
		Hubs:           planner.DefaultHubs,
		Distributors:   planner.DefaultDistributors,
		Jitter:         planner.DefaultJitter,
		TxFee:          cfgutil.NewAmountFlag(fees.DefaultTxFee),
		SwapAPI:        swap.DefaultAPIURL,
		SlippageBps:    fees.DefaultSlippageBps,
		SwapFee:        cfgutil.NewAmountFlag(0),
		SweepTo:        cfgutil.NewExplicitString(""),
	}
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in hopfund functioning properly without any config
// settings while still allowing the user to override settings with config files
// and command line options.  Command line options always take precedence.
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	funcName := "loadConfig"
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	configFilePath := cleanAndExpandPath(preCfg.ConfigFile.Value)
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		if preCfg.ConfigFile.ExplicitlySet() {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if err := initLogRotator(
		filepath.Join(cfg.LogDir, defaultLogFilename),
	); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	if err := validateConfig(&cfg); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}

// validateConfig checks option values and fills the parsed fields of cfg.
func validateConfig(cfg *config) error {
	switch rpc.CommitmentType(cfg.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed,
		rpc.CommitmentFinalized:

	default:
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}

	switch cfg.Topology {
	case topologyChain, topologyFanOut:
	default:
		return fmt.Errorf("invalid topology %q -- supported "+
			"topologies: %s, %s", cfg.Topology, topologyChain,
			topologyFanOut)
	}

	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v",
			cfg.Duration)
	}
	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		return fmt.Errorf("jitter must be in [0, 1), got %v", cfg.Jitter)
	}
	if cfg.Amount.Amount < 0 {
		return fmt.Errorf("amount must not be negative, got %v",
			cfg.Amount.Amount)
	}
	if cfg.TxFee.Amount <= 0 {
		return fmt.Errorf("tx fee must be positive, got %v",
			cfg.TxFee.Amount)
	}
	if cfg.Hubs <= 0 || cfg.Distributors <= 0 {
		return errors.New("hubs and distributors must be positive")
	}

	recipients, err := parseRecipients(cfg.Recipients, cfg.RecipientsFile)
	if err != nil {
		return err
	}
	cfg.recipients = recipients

	if cfg.Swap {
		if cfg.Topology != topologyChain {
			return errors.New("--swap requires the chain topology")
		}
		if cfg.SwapMint == "" {
			return errors.New("--swap requires --swapmint")
		}
		cfg.swapMint, err = solana.PublicKeyFromBase58(cfg.SwapMint)
		if err != nil {
			return fmt.Errorf("invalid swap mint: %w", err)
		}
		if cfg.SwapPool != "" {
			cfg.swapPool, err = solana.PublicKeyFromBase58(
				cfg.SwapPool,
			)
			if err != nil {
				return fmt.Errorf("invalid swap pool: %w", err)
			}
		}
	}

	if cfg.SweepTo.ExplicitlySet() {
		cfg.sweepTo, err = solana.PublicKeyFromBase58(cfg.SweepTo.Value)
		if err != nil {
			return fmt.Errorf("invalid sweep destination: %w", err)
		}
	}

	return nil
}

// parseRecipients merges the recipients given on the command line and in a
// recipients file.
func parseRecipients(addrs []string, file string) ([]solana.PublicKey, error) {
	if file != "" {
		lines, err := cfgutil.ReadLines(cleanAndExpandPath(file))
		if err != nil {
			return nil, fmt.Errorf("unable to read recipients: %w", err)
		}
		addrs = append(addrs, lines...)
	}

	if len(addrs) == 0 {
		return nil, errors.New("no recipients -- use --recipient or " +
			"--recipientsfile")
	}

	recipients := make([]solana.PublicKey, 0, len(addrs))
	for _, addr := range addrs {
		pk, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", addr,
				err)
		}
		recipients = append(recipients, pk)
	}

	return recipients, nil
}
