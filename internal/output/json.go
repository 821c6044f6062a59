package output

import (
	"encoding/json"

	"launchpad/internal/diff"
)

type jsonFormatter struct{}

// FormatDiff serializes the diff result literally.
func (jsonFormatter) FormatDiff(r *diff.Result) (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
