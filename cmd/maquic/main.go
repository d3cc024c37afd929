// Command maquic drives the lex/parse/verify pipeline over one or more
// source files. It is a thin wiring layer that the core pkg/ package never
// imports back. Code generation and error-text formatting are explicitly
// out of scope here - maquic reports a Go-native error value's default
// Error() string and nothing fancier.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	maqui "go.maqui.dev/pkg"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("maquic", pflag.ContinueOnError)
	verbose := flags.BoolP("verbose", "v", false, "print a structured trace of parsing and verification")
	arch := flags.String("arch", string(maqui.X86_64), "target architecture triple component")
	osName := flags.String("os", string(maqui.Linux), "target OS triple component")

	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	files := flags.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: maquic [flags] <file> [file...]")
		return 2
	}

	config := maqui.Config{
		Verbose: *verbose,
		Target: maqui.Target{
			Arch:   maqui.Arch(*arch),
			Vendor: maqui.Unknown,
			OS:     maqui.OS(*osName),
		},
	}

	compiler := maqui.NewCompiler(config)
	results, err := compiler.Compile(context.Background(), files)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	status := 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", r.Filename, r.Err)
			status = 1
			continue
		}
		fmt.Printf("%s: ok\n", r.Filename)
	}
	return status
}
