// Command hostelctl is the operator CLI for the hostel allocation engine. It runs schema
// migrations, roster imports, reconciliation and the occupancy reports against the same
// services the HTTP API uses.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := 0
	if err := newRootCmd(newCLI()).ExecuteContext(ctx); err != nil {
		code = 1
	}
	stop()
	os.Exit(code)
}
