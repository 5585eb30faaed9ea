package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/passport/internal/flagx"
	"github.com/dmitrijs2005/passport/internal/timex"
)

// JsonConfig is the on-disk shape of the CLI config file.
type JsonConfig struct {
	HIBPBaseURL string         `json:"hibp_base_url"`
	HIBPTimeout timex.Duration `json:"hibp_timeout"`
}

// parseJson overlays cfg with the file named by -c/-config. Fields absent
// from the file keep their current values. Read or decode errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.HIBPBaseURL != "" {
		cfg.HIBPBaseURL = jc.HIBPBaseURL
	}
	if jc.HIBPTimeout.Duration > 0 {
		cfg.HIBPTimeout = time.Duration(jc.HIBPTimeout.Duration)
	}
}
