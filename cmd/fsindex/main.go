// Command fsindex indexes files by creation time and lists them back in
// creation order.
package main

import (
	"context"
	"os"

	"github.com/roach88/fsindex/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), cli.NewRootCommand()))
}
