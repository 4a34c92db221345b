package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	lv0cmd "lv0/internal/cli/cmd"
	"lv0/internal/config"
)

func main() {
	config.LoadDotenv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := lv0cmd.Execute(ctx)
	stop()
	if err != nil {
		var ee *lv0cmd.ExitError
		if errors.As(err, &ee) {
			if ee.Err != nil {
				fmt.Fprintln(os.Stderr, "Error:", ee.Err)
			}
			os.Exit(ee.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(lv0cmd.ExitCLIError)
	}
	os.Exit(lv0cmd.ExitOK)
}
