// typecatalog serves configuration snapshots and resolved type schemas
package main

import (
	"fmt"
	"os"

	"github.com/nainya/typecatalog/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
