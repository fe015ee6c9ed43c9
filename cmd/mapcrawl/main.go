package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rendis/mapcrawl/internal/config"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "scan":
		err = runScan(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "init-config":
		err = runInitConfig(os.Args[2:])
	case "version":
		fmt.Println("mapcrawl " + version)
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runInitConfig(args []string) error {
	var output string
	var force bool

	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	fs.StringVar(&output, "output", "mapcrawl.toml", "Config file to write")
	fs.BoolVar(&force, "force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(output); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", output)
	}
	if err := config.Save(config.Default(), output); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `mapcrawl - Google Maps search crawler

Usage:
  mapcrawl scan [flags]         Run searches and enqueue the places found
  mapcrawl export [flags]       Export enqueued requests or exported URLs to CSV
  mapcrawl init-config [flags]  Write the default config file
  mapcrawl version              Show version

Run 'mapcrawl scan --help' or 'mapcrawl export --help' for flags.
`)
}
