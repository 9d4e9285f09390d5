package main

import (
	"os"

	"github.com/joacominatel/minaops/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(cli.DefaultDeps(version), os.Args[1:]))
}
