// Package version reports the running binary's build version, read from a
// version.json file in the current working directory.
package version

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
)

type Info struct {
	Version string `json:"version"`
}

// Load reads version.json from the current working directory, falling
// back to "0.0.0" if the file is missing or malformed.
func Load(log zerolog.Logger) Info {
	data, err := os.ReadFile("version.json")
	if err != nil {
		log.Warn().Err(err).Msg("could not read version.json")
		return Info{Version: "0.0.0"}
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		log.Warn().Err(err).Msg("could not parse version.json")
		return Info{Version: "0.0.0"}
	}
	return info
}
