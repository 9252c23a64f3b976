// geosuggest serves as-you-type attribute and location suggestions over map layers.
package main

import (
	"os"

	"github.com/kailas-cloud/geosuggest/cmd/geosuggest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
