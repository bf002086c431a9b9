// Command matidb is the MatiDB server and interactive shell: run it
// bare for a local REPL against a data file, or with --server to
// listen for line-protocol TCP clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"matidb/internal/server"
	"matidb/internal/sql"
	"matidb/internal/storage"
	"matidb/internal/telemetry"
)

const (
	defaultServerAddr = "127.0.0.1:5432"
	defaultDBFile     = "mati.db"
)

func main() {
	var (
		serverMode  = flag.Bool("server", false, "listen for TCP clients instead of running an interactive shell")
		logLevel    = flag.String("log-level", "info", "minimum log level: debug, info, warn, error")
		logFormat   = flag.String("log-format", "console", "log encoding: json or console")
		metricsOn   = flag.Bool("metrics", false, "expose Prometheus metrics")
		metricsPort = flag.Int("metrics-port", 9464, "port for the /metrics endpoint")
	)
	flag.Parse()

	logger, err := telemetry.NewLogger(telemetry.LogConfig{
		Level:      *logLevel,
		Format:     *logFormat,
		OutputFile: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "matidb: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	metrics, shutdownMetrics, err := telemetry.New(telemetry.MetricsConfig{
		Enabled:        *metricsOn,
		PrometheusPort: *metricsPort,
	})
	if err != nil {
		log.Fatalw("failed to initialize metrics", "error", err)
	}
	defer shutdownMetrics(context.Background())

	addr := defaultServerAddr
	dbFile := defaultDBFile
	args := flag.Args()
	if *serverMode {
		if len(args) > 0 {
			addr = args[0]
		}
		if len(args) > 1 {
			dbFile = args[1]
		}
	} else if len(args) > 0 {
		dbFile = args[0]
	}

	engine, err := storage.Open(dbFile, log)
	if err != nil {
		log.Fatalw("failed to open database", "path", dbFile, "error", err)
	}
	defer engine.Close()

	if err := metrics.RegisterBufferPoolGauges(engine.Stats); err != nil {
		log.Warnw("failed to register buffer pool gauges", "error", err)
	}
	if err := metrics.RegisterPageIOGauges(engine.IOStats); err != nil {
		log.Warnw("failed to register page I/O gauges", "error", err)
	}

	if *serverMode {
		runServer(addr, engine, metrics, log)
		return
	}
	runInteractive(dbFile, engine, metrics, log)
}

func runServer(addr string, engine *storage.Engine, metrics *telemetry.Metrics, log *zap.SugaredLogger) {
	srv, err := server.New(addr, engine, metrics, log)
	if err != nil {
		log.Fatalw("failed to start server", "address", addr, "error", err)
	}
	defer srv.Close()

	fmt.Printf("MatiDB server listening on %s\n", addr)
	if err := srv.Run(); err != nil {
		log.Fatalw("server stopped with error", "error", err)
	}
}

func runInteractive(dbFile string, engine *storage.Engine, metrics *telemetry.Metrics, log *zap.SugaredLogger) {
	rl, err := readline.New("matidb> ")
	if err != nil {
		log.Fatalw("failed to initialize shell", "error", err)
	}
	defer rl.Close()

	fmt.Println("MatiDB - a minimal single-node relational store")
	fmt.Printf("Database file: %s\n", dbFile)
	fmt.Println("Type 'exit' to quit, 'tables' to list tables, 'flush' to checkpoint")

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			log.Warnw("readline error", "error", err)
			break
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch strings.ToLower(trimmed) {
		case "exit", "quit":
			fmt.Println("Goodbye!")
			return
		case "tables":
			printTables(engine)
			continue
		case "flush":
			if err := engine.Flush(); err != nil {
				fmt.Fprintf(os.Stderr, "Error flushing: %v\n", err)
			} else {
				fmt.Println("All pages flushed to disk")
			}
			continue
		}

		runStatements(engine, metrics, trimmed, log)
	}

	if err := engine.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to flush pages: %v\n", err)
	}
	fmt.Println("Goodbye!")
}

func printTables(engine *storage.Engine) {
	tables := engine.ListTables()
	if len(tables) == 0 {
		fmt.Println("No tables")
		return
	}
	for _, t := range tables {
		fmt.Printf("  %s\n", t.Name)
	}
}

func runStatements(engine *storage.Engine, metrics *telemetry.Metrics, line string, log *zap.SugaredLogger) {
	stmts, err := sql.Parse(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
		return
	}
	for _, stmt := range stmts {
		result, err := sql.Execute(engine, stmt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			log.Debugw("statement failed", "error", err)
			return
		}
		fmt.Println(result)

		metrics.QueriesHandled.Add(context.Background(), 1)
		if ins, ok := stmt.(*sql.InsertStmt); ok {
			metrics.RowsInserted.Add(context.Background(), int64(len(ins.Rows)))
		}
	}
}
