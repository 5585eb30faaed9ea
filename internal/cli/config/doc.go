// Package config loads runtime configuration for the PassPort operator CLI.
//
// Sources and precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-u string   base URL of the breach range API
//	-t int      breach lookup timeout (seconds)
//
// JSON schema:
//
//	{
//	  "hibp_base_url": "https://api.pwnedpasswords.com",
//	  "hibp_timeout": "10s"
//	}
package config
