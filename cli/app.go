// Package cli implements the command-line interface of the firstissue tool.
package cli

import (
	kingpin "github.com/alecthomas/kingpin/v2"
)

var app = kingpin.New("firstissue", "Labels recently-opened issues that are approachable for new contributors.")

// App returns an instance of the command-line application object.
func App() *kingpin.Application {
	return app
}
