// Command rankctl ranks feed files offline and inspects cached feeds.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
