// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/decred/bloomsync/filtermgr"
	"github.com/decred/bloomsync/internal/version"
	"github.com/decred/bloomsync/sampleconfig"
	"github.com/decred/go-socks/socks"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename  = "bloomsyncd.conf"
	defaultDataDirname     = "data"
	defaultLogDirname      = "logs"
	defaultLogFilename     = "bloomsyncd.log"
	defaultWatchDBDirname  = "watch"
	defaultLogLevel        = "info"
	defaultLogSize         = "10M"
	defaultDialTimeout     = time.Second * 30
	defaultBloomUpdateType = "none"
)

var (
	defaultHomeDir    = btcutil.AppDataDir("bloomsyncd", false)
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
)

// config defines the configuration options for bloomsyncd.
//
// See loadConfig for details on the configuration load process.
type config struct {
	// General application behavior.
	ShowVersion   bool   `short:"V" long:"version" description:"Display version information and exit"`
	HomeDir       string `short:"A" long:"appdata" description:"Path to application home directory"`
	ConfigFile    string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir       string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir        string `long:"logdir" description:"Directory to log output"`
	LogSize       string `long:"logsize" description:"Maximum size of log file before it is rotated"`
	NoFileLogging bool   `long:"nofilelogging" description:"Disable file logging"`
	DebugLevel    string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Profile       string `long:"profile" description:"Enable HTTP profiling on given [addr:]port -- NOTE port must be between 1024 and 65535"`

	// Network settings.
	TestNet      bool          `long:"testnet" description:"Use the test network"`
	RegNet       bool          `long:"regtest" description:"Use the regression test network"`
	SimNet       bool          `long:"simnet" description:"Use the simulation test network"`
	ConnectPeers []string      `long:"connect" description:"Connect to the specified peers and keep the connections alive"`
	DialTimeout  time.Duration `long:"dialtimeout" description:"How long to wait for TCP connection completion.  Valid time units are {s, m, h}.  Minimum 1 second"`
	Proxy        string        `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser    string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass    string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`

	// Filter settings.
	FalsePositiveRate float64  `long:"fprate" description:"Target false positive rate of the bloom filter"`
	ResizeThreshold   float64  `long:"resizethreshold" description:"Fraction of the target false positive rate the estimated rate may exceed it by before the filter is rebuilt"`
	NoFilterAdd       bool     `long:"nofilteradd" description:"Do not announce newly watched elements with filteradd messages"`
	BloomUpdate       string   `long:"bloomupdate" description:"How peers update the filter on matches {none, all, p2pubkeyonly}"`
	Watch             []string `long:"watch" description:"Hex-encoded data element to watch for"`
	WatchAddrs        []string `long:"watchaddr" description:"Address to watch for -- persisted in the watch store"`
	WatchOutPoints    []string `long:"watchoutpoint" description:"Outpoint to watch for in the form txid:index -- persisted in the watch store"`
	WatchDB           string   `long:"watchdb" description:"Path to the watch store database"`
	NoWatchDB         bool     `long:"nowatchdb" description:"Disable the persistent watch store"`

	// The following fields are derived from the above fields by loadConfig.
	params        *chaincfg.Params
	dial          func(context.Context, string, string) (net.Conn, error)
	logSizeKB     int64
	logFile       string
	bloomUpdate   wire.BloomUpdateType
	watchElements [][]byte
	watchItems    [][]byte
	connectAddrs  []string
}

// errSuppressUsage signifies that an error that happened during the initial
// configuration phase should suppress the usage output since it was not caused
// by the user.
type errSuppressUsage string

// Error implements the error interface.
func (e errSuppressUsage) Error() string {
	return string(e)
}

// cleanAndExpandPath expands environment variables and leading ~ in the passed
// path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Nothing to do when no path is given.
	if path == "" {
		return path
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but the variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser to
	// otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	path = path[1:]
	var pathSeparators string
	if os.PathSeparator == '/' {
		pathSeparators = "/"
	} else {
		pathSeparators = string(os.PathSeparator) + "/"
	}
	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}
	homeDir := ""
	if userName == "" {
		homeDir, _ = os.UserHomeDir()
	}
	if homeDir == "" {
		return filepath.Clean(filepath.Join("~"+userName, path))
	}
	return filepath.Join(homeDir, path)
}

// parseLogSize parses a log size of the form <num>[K|M|G] into kibibytes.
func parseLogSize(size string) (int64, error) {
	size = strings.ToUpper(strings.TrimSpace(size))
	if size == "" {
		return 0, errors.New("empty log size")
	}
	multiplier := int64(1)
	switch size[len(size)-1] {
	case 'K':
		size = size[:len(size)-1]
	case 'M':
		multiplier = 1 << 10
		size = size[:len(size)-1]
	case 'G':
		multiplier = 1 << 20
		size = size[:len(size)-1]
	}
	n, err := strconv.ParseInt(size, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid log size %q", size)
	}
	return n * multiplier, nil
}

// parseBloomUpdate parses the name of a bloom filter update type.
func parseBloomUpdate(s string) (wire.BloomUpdateType, error) {
	switch strings.ToLower(s) {
	case "none":
		return wire.BloomUpdateNone, nil
	case "all":
		return wire.BloomUpdateAll, nil
	case "p2pubkeyonly":
		return wire.BloomUpdateP2PubkeyOnly, nil
	}
	return 0, fmt.Errorf("unknown bloom update type %q", s)
}

// parseWatchOutPoint parses an outpoint of the form txid:index into the
// serialization matched by bloom filters.
func parseWatchOutPoint(s string) ([]byte, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return nil, fmt.Errorf("outpoint %q is not of the form txid:index", s)
	}
	hash, err := chainhash.NewHashFromStr(s[:i])
	if err != nil {
		return nil, fmt.Errorf("outpoint %q has an invalid txid: %w", s, err)
	}
	index, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("outpoint %q has an invalid index: %w", s, err)
	}

	var buf [chainhash.HashSize + 4]byte
	copy(buf[:], hash[:])
	binary.LittleEndian.PutUint32(buf[chainhash.HashSize:], uint32(index))
	return buf[:], nil
}

// normalizeAddress returns addr with the passed default port appended if there
// is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// createDefaultConfigFile writes the sample config to the provided path.
func createDefaultConfigFile(destPath string) error {
	err := os.MkdirAll(filepath.Dir(destPath), 0700)
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte(sampleconfig.Bloomsyncd()), 0600)
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfg *config, options flags.Options) *flags.Parser {
	return flags.NewParser(cfg, options)
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
// The above results in bloomsyncd functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take
// precedence.
func loadConfig(appName string, args []string) (*config, []string, error) {
	// Default config.
	cfg := config{
		HomeDir:           defaultHomeDir,
		ConfigFile:        defaultConfigFile,
		DebugLevel:        defaultLogLevel,
		LogSize:           defaultLogSize,
		DialTimeout:       defaultDialTimeout,
		FalsePositiveRate: filtermgr.DefaultFalsePositiveRate,
		ResizeThreshold:   filtermgr.DefaultResizeThreshold,
		BloomUpdate:       defaultBloomUpdateType,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, version.String())
		os.Exit(0)
	}

	// Update the home directory for bloomsyncd if specified.  Since the home
	// directory is updated, other variables need to be updated to reflect
	// the new changes.
	if preCfg.HomeDir != "" {
		cfg.HomeDir = cleanAndExpandPath(preCfg.HomeDir)
		if preCfg.ConfigFile == defaultConfigFile {
			cfg.ConfigFile = filepath.Join(cfg.HomeDir, defaultConfigFilename)
		} else {
			cfg.ConfigFile = cleanAndExpandPath(preCfg.ConfigFile)
		}
	}

	// Create a default config file when one does not exist and the user did
	// not specify an override.
	if preCfg.ConfigFile == defaultConfigFile {
		if _, err := os.Stat(cfg.ConfigFile); os.IsNotExist(err) {
			if err := createDefaultConfigFile(cfg.ConfigFile); err != nil {
				str := fmt.Sprintf("Error creating a default config file: %v",
					err)
				return nil, nil, errSuppressUsage(str)
			}
		}
	}

	// Load additional config from file.
	var configFileError error
	parser := newConfigParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(cfg.ConfigFile)
	if err != nil {
		var e *os.PathError
		if !errors.As(err, &e) {
			err = fmt.Errorf("error parsing config file: %w", err)
			return nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	// Choose the active network params based on the selected network.
	numNets := 0
	cfg.params = &chaincfg.MainNetParams
	if cfg.TestNet {
		numNets++
		cfg.params = &chaincfg.TestNet3Params
	}
	if cfg.RegNet {
		numNets++
		cfg.params = &chaincfg.RegressionNetParams
	}
	if cfg.SimNet {
		numNets++
		cfg.params = &chaincfg.SimNetParams
	}
	if numNets > 1 {
		return nil, nil, errors.New("the testnet, regtest, and simnet " +
			"params can't be used together -- choose one of the three")
	}

	// Derive the data, log, and watch store paths from the home directory
	// and network when not set.
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(cfg.HomeDir, defaultDataDirname)
	}
	cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir),
		cfg.params.Name)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.HomeDir, defaultLogDirname)
	}
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir), cfg.params.Name)
	cfg.logFile = filepath.Join(cfg.LogDir, defaultLogFilename)
	if cfg.WatchDB == "" {
		cfg.WatchDB = filepath.Join(cfg.DataDir, defaultWatchDBDirname)
	}
	cfg.WatchDB = cleanAndExpandPath(cfg.WatchDB)

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	cfg.logSizeKB, err = parseLogSize(cfg.LogSize)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.NoFileLogging {
		initLogRotator(cfg.logFile, cfg.logSizeKB)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, err
	}

	// Validate the filter settings.
	if cfg.FalsePositiveRate <= 0 || cfg.FalsePositiveRate >= 1 {
		return nil, nil, fmt.Errorf("fprate %g must be between 0 and 1 "+
			"exclusive", cfg.FalsePositiveRate)
	}
	if cfg.ResizeThreshold <= 0 || cfg.ResizeThreshold >= 1 {
		return nil, nil, fmt.Errorf("resizethreshold %g must be between 0 "+
			"and 1 exclusive", cfg.ResizeThreshold)
	}
	cfg.bloomUpdate, err = parseBloomUpdate(cfg.BloomUpdate)
	if err != nil {
		return nil, nil, err
	}

	// Parse the watched elements.
	for _, s := range cfg.Watch {
		element, err := hex.DecodeString(s)
		if err != nil || len(element) == 0 {
			return nil, nil, fmt.Errorf("watch element %q is not valid "+
				"non-empty hex", s)
		}
		cfg.watchElements = append(cfg.watchElements, element)
	}
	for _, s := range cfg.WatchAddrs {
		addr, err := btcutil.DecodeAddress(s, cfg.params)
		if err != nil {
			return nil, nil, fmt.Errorf("watch address %q: %w", s, err)
		}
		if !addr.IsForNet(cfg.params) {
			return nil, nil, fmt.Errorf("watch address %q is not for %s", s,
				cfg.params.Name)
		}
		cfg.watchItems = append(cfg.watchItems, addr.ScriptAddress())
	}
	for _, s := range cfg.WatchOutPoints {
		item, err := parseWatchOutPoint(s)
		if err != nil {
			return nil, nil, err
		}
		cfg.watchItems = append(cfg.watchItems, item)
	}
	if cfg.NoWatchDB && len(cfg.watchItems) > 0 {
		return nil, nil, errors.New("the watchaddr and watchoutpoint " +
			"options require the watch store -- remove nowatchdb")
	}

	// Validate the network settings.
	if len(cfg.ConnectPeers) == 0 {
		return nil, nil, errors.New("at least one peer must be specified " +
			"with the connect option")
	}
	seen := make(map[string]struct{}, len(cfg.ConnectPeers))
	for _, addr := range cfg.ConnectPeers {
		addr = normalizeAddress(addr, cfg.params.DefaultPort)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		cfg.connectAddrs = append(cfg.connectAddrs, addr)
	}
	sort.Strings(cfg.connectAddrs)
	if cfg.DialTimeout < time.Second {
		return nil, nil, fmt.Errorf("dialtimeout %v is less than the "+
			"minimum of 1 second", cfg.DialTimeout)
	}

	// Setup dial function depending on the specified options.  The default
	// is to use the standard net.DialContext function.  When a proxy is
	// specified, the dial function is set to the proxy specific dial
	// function.
	var dialer net.Dialer
	cfg.dial = dialer.DialContext
	if cfg.Proxy != "" {
		_, _, err := net.SplitHostPort(cfg.Proxy)
		if err != nil {
			return nil, nil, fmt.Errorf("proxy address '%s' is invalid: %w",
				cfg.Proxy, err)
		}
		proxy := &socks.Proxy{
			Addr:     cfg.Proxy,
			Username: cfg.ProxyUser,
			Password: cfg.ProxyPass,
		}
		cfg.dial = proxy.DialContext
	}

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.  Note this should go directly before the return.
	if configFileError != nil {
		bsydLog.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}
