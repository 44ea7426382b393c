// Command csmctl inspects and drains the csm agent's queue files.
package main

import (
	"os"

	"github.com/and161185/csm-transport/internal/cli"
)

func Main() int {
	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(Main())
}
