package main

import (
	"context"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = ""
)

func versionCommand() *Command {
	c := &Command{
		Name:        "version",
		Description: "Show version information",
		Usage:       "neoflow version",
		Offline:     true,
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		rev := commit
		if rev == "" {
			if info, ok := debug.ReadBuildInfo(); ok {
				for _, s := range info.Settings {
					if s.Key == "vcs.revision" {
						rev = s.Value
					}
				}
			}
		}
		e.printf("neoflow %s", version)
		if rev != "" {
			e.printf(" (%s)", rev)
		}
		e.printf(" %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	}
	return c
}
