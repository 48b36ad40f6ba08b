// Команда loadtest нагружает pos-service продажами по gRPC и проверяет, что
// при конкуренции за последний остаток товар не продаётся сверх наличия.
package main

import (
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		exitf("invalid config: %v", err)
	}

	clients := make([]posv1.PosServiceClient, 0, cfg.connections)
	for range cfg.connections {
		conn, err := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			exitf("create grpc client: %v", err)
		}
		defer conn.Close()
		clients = append(clients, posv1.NewPosServiceClient(conn))
	}

	result := newLoadRunner(cfg, clients).run()

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			exitf("write report: %v", err)
		}
	}

	if result.Outcomes[outcomeFailed] > 0 || result.Oversold {
		os.Exit(1)
	}
}

func exitf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
