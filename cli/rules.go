package cli

import (
	"os"

	"github.com/pkg/errors"
)

// loadRules reads the classification ruleset from a file; an empty path
// selects the built-in ruleset.
func loadRules(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to read rules file")
	}

	return string(b), nil
}
