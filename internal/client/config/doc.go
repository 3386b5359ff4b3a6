// Package config loads runtime configuration for the picshare client.
//
// Sources, later ones win:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags.
//
// Flags:
//
//	-a string   address:port of the gRPC endpoint
//	-i int      online status check interval (seconds)
//	-d string   directory fetched media is written to
//
// JSON keys mirror the flags; the interval accepts "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "download_dir": "/tmp/pics"
//	}
package config
