// Command privacyanalyzer is the process entrypoint: serve runs the API
// front end, worker runs the crawl/analysis worker pool, migrate applies
// the database schema, and version prints the build version.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
