// Command opacity is a command-line client for Opacity encrypted storage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	a := &app{}

	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorText.Sprint("Error:"), err)
		os.Exit(1)
	}
}
