package server

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chathub/pkg/config"
	"chathub/pkg/logger"
)

func Main() {
	if len(os.Args) > 1 && (os.Args[len(os.Args)-1] == "-h" || os.Args[len(os.Args)-1] == "--help") {
		fs := flag.NewFlagSet("hubd", flag.ContinueOnError)
		fs.String("addr", ":8080", "Server address")
		fs.String("config", "", "Config file path (optional)")
		fs.String("cert", "", "TLS certificate file")
		fs.String("key", "", "TLS key file")
		fs.Bool("tls", false, "Enable TLS (use false when behind a reverse proxy)")
		fs.String("log-level", "info", "Log level: debug, info, warn, error")
		fs.String("log-format", "text", "Log format: text or json")
		printHelp(fs)
		return
	}

	// Subcommands: start|stop|restart|status (default: start)
	command := "start"
	if len(os.Args) > 1 {
		first := os.Args[1]
		if first == "start" || first == "stop" || first == "restart" || first == "status" {
			command = first
			os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		}
	}

	instanceMgr := NewInstanceManager()

	if command != "start" {
		switch command {
		case "status":
			if running, pid := instanceMgr.IsRunning(); running {
				fmt.Printf("Server running (PID %d)\n", pid)
			} else {
				fmt.Println("Server not running")
			}
			return
		case "stop":
			if err := instanceMgr.Kill(); err != nil {
				fmt.Printf("Stop failed: %v\n", err)
			} else {
				fmt.Println("Server stopped")
			}
			return
		case "restart":
			_ = instanceMgr.Kill() // May not be running
			fmt.Println("Restarting server...")
		}
	}

	if command == "start" {
		if running, pid := instanceMgr.IsRunning(); running {
			fmt.Printf("Server already running (PID %d)\n", pid)
			return
		}
	}

	addr := flag.String("addr", "", "Server address")
	configPath := flag.String("config", "", "Config file path (optional)")
	certFile := flag.String("cert", "", "TLS certificate file")
	keyFile := flag.String("key", "", "TLS key file")
	useTLS := flag.Bool("tls", false, "Enable TLS (use false when behind a reverse proxy)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: text or json")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return
	}

	// Flags override file and environment.
	if *addr != "" {
		cfg.Address = *addr
	}
	if *certFile != "" {
		cfg.TLS.CertFile = *certFile
	}
	if *keyFile != "" {
		cfg.TLS.KeyFile = *keyFile
	}
	if *useTLS {
		cfg.TLS.Enabled = true
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logger.Init(logger.LogLevel(cfg.Logging.Level), cfg.Logging.Format)
	log := logger.Get()

	log.InfoWith("configuration loaded", "config", cfg.String())

	srv, err := NewServer(cfg)
	if err != nil {
		log.ErrorWithErr("failed to create server", err)
		return
	}

	if err := instanceMgr.WritePID(); err != nil {
		log.WarnWith("failed to write PID file", "error", err)
	}
	defer instanceMgr.RemovePID()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errorChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errorChan <- err
		}
	}()

	log.InfoWith("server is running", "address", cfg.Address)

	select {
	case sig := <-sigChan:
		log.InfoWith("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error during shutdown", err)
		}
		log.InfoWith("server stopped")

	case err := <-errorChan:
		if err != nil {
			log.ErrorWithErr("server encountered fatal error", err)
		}
		log.InfoWith("server stopped")
	}
}

// printHelp displays help information for the server
func printHelp(fs *flag.FlagSet) {
	fmt.Print(`hubd - presence and messaging hub

Commands:
  start              Start the server (default if no command given)
  stop               Stop the running server
  restart            Restart the server
  status             Show server status

Flags:
`)
	fs.PrintDefaults()
	fmt.Print(`
Examples:
  ./bin/hubd                             # Start on default port 8080
  ./bin/hubd -addr 127.0.0.1:8081        # Start on custom port
  ./bin/hubd -config hub.yaml            # Start with a config file
  ./bin/hubd stop                        # Stop the server
  ./bin/hubd status                      # Check if the server is running
`)
}
