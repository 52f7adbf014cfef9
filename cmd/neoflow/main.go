// Command neoflow drives the document OCR pipeline from the terminal:
// upload, process, watch, review, merge, capture, archive and export.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return newRegistry().Execute(ctx, args, out, func() (*env, error) { return loadEnv(out) })
}

func newRegistry() *CommandRegistry {
	r := NewCommandRegistry()
	for _, cmd := range []*Command{
		uploadCommand(),
		processCommand(),
		statusCommand(),
		watchCommand(),
		listCommand(),
		resultCommand(),
		downloadCommand(),
		deleteCommand(),
		validateCommand(),
		rejectCommand(),
		renameCommand(),
		templatesCommand(),
		mergeCommand(),
		captureCommand(),
		archiveCommand(),
		exportCommand(),
		versionCommand(),
	} {
		r.Register(cmd)
	}
	return r
}
