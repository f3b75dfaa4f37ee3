// Command imcored is the embedder demo: it wires every core subsystem
// together behind a CLI and a small REST surface, the way the teacher's
// own main.go wires its room/store/api/server together.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"imcore/internal/account"
	"imcore/internal/bootstrap"
	"imcore/internal/debuglog"
	"imcore/internal/eventloop"
	"imcore/internal/protoplugin"
	"imcore/internal/resolver"
	"imcore/internal/store"
)

// Version is the demo binary's reported version string.
const Version = "0.1.0"

func main() {
	// Re-exec as a DNS resolver worker when spawned by our own
	// UnixChildBackend (see internal/resolver.ChildWorkerEnv).
	if os.Getenv(resolver.ChildWorkerEnv) != "" {
		if err := resolver.RunChildWorker(os.Stdin, os.Stdout); err != nil {
			os.Exit(1)
		}
		return
	}

	if len(os.Args) > 1 {
		cliDB := "imcore.db"
		if RunCLI(os.Args[1:], cliDB) {
			return
		}
	}

	dbPath := flag.String("db", "imcore.db", "SQLite database path")
	apiAddr := flag.String("api-addr", ":8080", "REST API listen address (empty to disable)")
	pluginDir := flag.String("plugin-dir", "", "directory of plugin.toml manifests to watch (disabled if empty)")
	overridesPath := flag.String("overrides", "", "YAML file of per-protocol connect-server / debug overrides (optional)")
	verbose := flag.Bool("verbose", false, "enable verbose (misc-level) debug logging")
	flag.Parse()

	overrides, err := bootstrap.Load(*overridesPath)
	if err != nil {
		log.Fatalf("[bootstrap] %v", err)
	}
	// A YAML-file debug override only takes effect if the corresponding
	// env var wasn't already set, matching the sink's "env read once"
	// contract: the file never overrides an explicit environment choice.
	if overrides.Debug.Verbose && os.Getenv("IMCORE_VERBOSE_DEBUG") == "" {
		os.Setenv("IMCORE_VERBOSE_DEBUG", "1")
	}
	if overrides.Debug.Unsafe && os.Getenv("IMCORE_UNSAFE_DEBUG") == "" {
		os.Setenv("IMCORE_UNSAFE_DEBUG", "1")
	}
	if *verbose && os.Getenv("IMCORE_VERBOSE_DEBUG") == "" {
		os.Setenv("IMCORE_VERBOSE_DEBUG", "1")
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("[debug] build logger: %v", err)
	}
	defer zapLogger.Sync()
	events := NewEventsHub()
	dbg := debuglog.New("IMCORE", debuglog.Tee(debuglog.ZapUiOps(zapLogger), events.UiOps()))
	dbg.SetEnabled(true)
	if *verbose {
		dbg.Misc("main", "verbose logging enabled")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer st.Close()

	loop := eventloop.New(nil)
	go loop.Run()
	defer loop.Stop()

	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	dnsBackend := resolver.NewUnixChildBackend(exe)
	res := resolver.New(loop, dnsBackend, dbg, 8)

	registry := protoplugin.NewRegistry()
	registerBuiltinProtocols(registry, overrides)

	if *pluginDir != "" {
		if _, err := os.Stat(*pluginDir); err == nil {
			watcher, err := watchPluginManifests(*pluginDir, registry, dbg)
			if err != nil {
				dbg.Error("plugins", "watch %s: %v", *pluginDir, err)
			} else {
				defer watcher.Close()
				dbg.Info("plugins", "watching %s for manifests", *pluginDir)
			}
		} else {
			dbg.Warning("plugins", "plugin dir %s: %v", *pluginDir, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		dbg.Info("main", "shutting down")
		cancel()
	}()

	restoreAccounts(ctx, st, dbg)

	if *apiAddr != "" {
		api := NewAPIServer(st, registry, res, dbg, events)
		go func() {
			if err := api.Run(ctx, *apiAddr); err != nil {
				dbg.Error("api", "listen on %s: %v", *apiAddr, err)
			}
		}()
		dbg.Info("api", "listening on %s", *apiAddr)
	}

	<-ctx.Done()
}

// restoreAccounts loads every persisted account row and seeds an
// in-memory account.Account for it, logging (not connecting) each one;
// actually connecting is left to the embedder's own UI flow, triggered
// through the REST surface or a real UI.
func restoreAccounts(ctx context.Context, st *store.Store, dbg *debuglog.Sink) {
	rows, err := st.ListAccounts(ctx)
	if err != nil {
		dbg.Error("main", "list accounts: %v", err)
		return
	}
	for _, row := range rows {
		acct := account.New(account.Key{ProtocolID: row.ProtocolID, Username: row.Username})
		acct.SetPassword(row.Password, row.RememberPassword)
		acct.SetPrivacyPolicy(account.PrivacyPolicy(row.PrivacyPolicy))
		if permit, err := st.GetPrivacyList(ctx, row.ProtocolID, row.Username, "permit"); err == nil {
			for _, p := range permit {
				acct.PermitAdd(p)
			}
		}
		if deny, err := st.GetPrivacyList(ctx, row.ProtocolID, row.Username, "deny"); err == nil {
			for _, d := range deny {
				acct.DenyAdd(d)
			}
		}
		dbg.Info("main", "restored account %s", acct.Key())
	}
}
