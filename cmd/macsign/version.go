package main

import (
	"fmt"
	"io"
	"runtime"
)

var (
	version = "0.3.0"

	// These will be set during build with -ldflags
	gitCommit = "unknown"
	buildDate = "unknown"
)

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "macsign V%s\n", version)
	fmt.Fprintf(w, "  Git commit:  %s\n", gitCommit)
	fmt.Fprintf(w, "  Build date:  %s\n", buildDate)
	fmt.Fprintf(w, "  Go version:  %s\n", runtime.Version())
	fmt.Fprintf(w, "  OS/Arch:     %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
