// Package config loads runtime configuration for the Conduit CLI.
//
// Sources, lowest precedence first:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file given with -c/-config or CONDUIT_CLI_CONFIG.
//  3. CONDUIT_CLI_* environment variables.
//  4. Command-line flags -a and -t.
//
// JSON example:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "request_timeout": "5s"
//	}
package config
