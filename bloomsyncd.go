// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/decred/bloomsync/internal/version"
)

var cfg *config

// bloomsyncdMain is the real main function for bloomsyncd.  It is necessary to
// work around the fact that deferred functions do not run when os.Exit() is
// called.
func bloomsyncdMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	tcfg, _, err := loadConfig(appName, os.Args[1:])
	if err != nil {
		usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
		fmt.Fprintln(os.Stderr, err)
		var e errSuppressUsage
		if !errors.As(err, &e) {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Get a context that will be canceled when a shutdown signal has been
	// triggered from an OS signal such as SIGINT (Ctrl+C).
	ctx, stopListening := shutdownListener(context.Background())
	defer stopListening()
	defer bsydLog.Info("Shutdown complete")

	// Show version and home dir at startup.
	bsydLog.Infof("Version %s (Go version %s %s/%s)", version.String(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	bsydLog.Infof("Home dir: %s", cfg.HomeDir)
	bsydLog.Infof("Network: %s", cfg.params.Name)
	if cfg.NoFileLogging {
		bsydLog.Info("File logging disabled")
	}

	// Enable http profile server if requested.  The stop call is always
	// deferred to ensure it is stopped during process shutdown.
	var profiler profileServer
	defer profiler.Stop()
	if cfg.Profile != "" {
		if err := profiler.Start(cfg.Profile); err != nil {
			bsydLog.Warnf("unable to start profile server: %v", err)
			return err
		}
	}

	// Return now if an interrupt signal was triggered.
	if shutdownRequested(ctx) {
		return nil
	}

	// Create the server and run it until shutdown is requested.
	s, err := newServer(cfg)
	if err != nil {
		bsydLog.Errorf("Unable to start server: %v", err)
		return err
	}
	s.Run(ctx)
	srvrLog.Info("Server shutdown complete")
	return nil
}

func main() {
	// Work around defer not working after os.Exit()
	if err := bloomsyncdMain(); err != nil {
		os.Exit(1)
	}
}
