// annactl is a thin RPC client for annad: it dials the Unix-domain socket
// and sends one request per invocation. Human-facing rendering of the
// results is out of scope per spec.md §1 (Non-goals) - annactl prints the
// raw JSON result or error and leaves presentation to whatever wraps it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anna-project/annad/pkg/rpc"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	socketPath := flag.String("socket", getEnv("ANNAD_SOCKET", ""),
		"Path to annad's Unix-domain RPC socket (default: discovery order in §4.11)")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-call deadline")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: annactl [-socket path] [-timeout dur] <method> [params-json]")
		os.Exit(2)
	}
	method := args[0]

	var params any
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
			fmt.Fprintf(os.Stderr, "invalid params JSON: %v\n", err)
			os.Exit(2)
		}
	}

	resolvedSocket := rpc.ResolveSocketPath(*socketPath)
	client, err := rpc.Dial(resolvedSocket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", resolvedSocket, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	if method == "orchestrated_query" {
		if err := runStream(ctx, client, method, params); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	result, err := client.Call(ctx, method, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(result)
	fmt.Println()
}

// runStream drives orchestrated_query's streaming contract, printing one
// JSON frame per line so a wrapping shell can consume intermediate Debug
// Events as well as the final answer.
func runStream(ctx context.Context, client *rpc.Client, method string, params any) error {
	return client.CallStream(ctx, method, params, func(frame rpc.Response) {
		enc, err := json.Marshal(frame)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode frame: %v\n", err)
			return
		}
		os.Stdout.Write(enc)
		fmt.Println()
	})
}
