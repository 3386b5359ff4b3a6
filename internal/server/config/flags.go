package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/picshare/internal/flagx"
)

var serverFlags = []string{"-a", "-m", "-d", "-s", "-t", "-b", "-u", "-l", "-f"}

// parseFlags populates Config from command-line flags.
//
//	-a string     gRPC bind address (e.g. ":50051")
//	-m string     metrics bind address, empty to disable
//	-d string     PostgreSQL DSN
//	-s string     session token HMAC secret
//	-t duration   session validity (e.g. "12h")
//	-b string     blob backend: fs | s3
//	-u string     upload directory for the fs backend
//	-l int        max upload size in bytes
//	-f string     log format: json | zerolog | console
//
// S3 settings are taken from JSON or the environment only. Unknown flags in
// os.Args are ignored; a malformed value panics.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("picshare-server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port for /metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "session secret key")
	fs.DurationVar(&config.SessionValidityDuration, "t", config.SessionValidityDuration, "session validity duration")
	fs.StringVar(&config.BlobBackend, "b", config.BlobBackend, "blob backend (fs|s3)")
	fs.StringVar(&config.UploadDir, "u", config.UploadDir, "upload directory")
	fs.Int64Var(&config.MaxUploadSize, "l", config.MaxUploadSize, "max upload size in bytes")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format (json|zerolog|console)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
