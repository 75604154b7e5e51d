// Command indy exercises the call-site caching runtime against the
// reference object model and reports inline cache statistics.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := newCLI()
	cli.rootCmd.SetArgs(args)
	cli.rootCmd.SetOut(stdout)
	cli.rootCmd.SetErr(stderr)

	if err := cli.rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	return 0
}
