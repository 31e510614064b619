// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
bloomsyncd is a light client daemon that keeps a set of peers synchronized with
a BIP37 bloom filter of the data elements it watches for.

The daemon connects to the peers given with --connect and keeps those
connections alive.  Peers that do not advertise bloom filter support are
disconnected.  Every other peer is sent the current filter once the version
handshake completes.  Elements watched later are announced with filteradd
messages and the filter is rebuilt and sent again whenever its estimated false
positive rate drifts too far above the target.

Watched elements come from the --watch option, which takes raw hex data, and
from the watch store, a leveldb database that persists the addresses and
outpoints given with --watchaddr and --watchoutpoint across runs.

The long form of all options (except -C) can also be specified in a
configuration file.  By default, it is located at ~/.bloomsyncd/bloomsyncd.conf
on POSIX-style operating systems and %LOCALAPPDATA%\bloomsyncd\bloomsyncd.conf
on Windows.

Usage:

	bloomsyncd [OPTIONS]

Application Options:

	-V, --version          Display version information and exit
	-A, --appdata=         Path to application home directory
	-C, --configfile=      Path to configuration file
	-b, --datadir=         Directory to store data
	    --logdir=          Directory to log output
	    --logsize=         Maximum size of log file before it is rotated
	                       (default: 10M)
	    --nofilelogging    Disable file logging
	-d, --debuglevel=      Logging level for all subsystems {trace, debug,
	                       info, warn, error, critical} -- You may also
	                       specify <subsystem>=<level>,<subsystem2>=<level>,...
	                       to set the log level for individual subsystems --
	                       Use show to list available subsystems (info)
	    --profile=         Enable HTTP profiling on given [addr:]port -- NOTE
	                       port must be between 1024 and 65535
	    --testnet          Use the test network
	    --regtest          Use the regression test network
	    --simnet           Use the simulation test network
	    --connect=         Connect to the specified peers and keep the
	                       connections alive
	    --dialtimeout=     How long to wait for TCP connection completion
	                       (default: 30s)
	    --proxy=           Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)
	    --proxyuser=       Username for proxy server
	    --proxypass=       Password for proxy server
	    --fprate=          Target false positive rate of the bloom filter
	                       (default: 0.001)
	    --resizethreshold= Fraction of the target false positive rate the
	                       estimated rate may exceed it by before the filter
	                       is rebuilt (default: 0.4)
	    --nofilteradd      Do not announce newly watched elements with
	                       filteradd messages
	    --bloomupdate=     How peers update the filter on matches {none, all,
	                       p2pubkeyonly} (default: none)
	    --watch=           Hex-encoded data element to watch for
	    --watchaddr=       Address to watch for -- persisted in the watch store
	    --watchoutpoint=   Outpoint to watch for in the form txid:index --
	                       persisted in the watch store
	    --watchdb=         Path to the watch store database
	    --nowatchdb        Disable the persistent watch store

Help Options:

	-h, --help             Show this help message
*/
package main
