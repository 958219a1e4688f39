package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/pulsekeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-s string   store backend: fs, postgres or s3
//	-f string   data directory of the fs store
//	-x string   record file extension of the fs store
//	-d string   PostgreSQL DSN
//	-k string   password hashing secret
//	-t int      token validity, minutes
//	-m int      maximum checks per account
//	-l string   logger: slog or zap
//	-v string   environment (production enables production logging)
//	-r string   reconcile cron schedule
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint
//
// os.Args is filtered to these flags first so that -c/-config (handled by
// parseJson) does not cause a parse error.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-s", "-f", "-x", "-d", "-k", "-t", "-m", "-l", "-v", "-r", "-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.StoreBackend, "s", config.StoreBackend, "store backend (fs, postgres, s3)")
	fs.StringVar(&config.DataDir, "f", config.DataDir, "data directory")
	fs.StringVar(&config.FileExtension, "x", config.FileExtension, "record file extension")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.HashingSecret, "k", config.HashingSecret, "password hashing secret")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token validity (in minutes)")

	fs.IntVar(&config.MaxChecks, "m", config.MaxChecks, "maximum checks per account")
	fs.StringVar(&config.Logger, "l", config.Logger, "logger (slog, zap)")
	fs.StringVar(&config.Env, "v", config.Env, "environment")
	fs.StringVar(&config.ReconcileSchedule, "r", config.ReconcileSchedule, "reconcile cron schedule")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
}
