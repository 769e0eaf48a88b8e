/*
Command-line tool that labels issues approachable for new contributors.

Usage:

	$ firstissue [<flags>] run

Use 'firstissue help' to see more details.
*/
package main

import (
	"os"

	kingpin "github.com/alecthomas/kingpin/v2"

	"github.com/firstissue/firstissue/cli"
)

// set via -ldflags at build time.
var (
	buildVersion = "dev"
	buildInfo    = "unknown"
)

func main() {
	app := cli.App()
	app.Version(buildVersion + " build: " + buildInfo)
	kingpin.MustParse(app.Parse(os.Args[1:]))
}
