package config

import (
	"flag"
	"fmt"
)

// parseFlags overlays command-line flags. Only the settings commonly changed
// per run have a flag; everything else is environment only.
//
//	-addr            listen address (e.g. ":3000")
//	-storage         memory | postgres
//	-database-url    PostgreSQL DSN
//	-session-store   storage | redis
//	-throttle-store  memory | redis
//	-redis-addr      Redis address
//	-upload-backend  disk | s3
//	-upload-dir      directory for disk uploads
//	-log-level       debug | info | warn | error
//	-log-format      text | json
func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("bantay", flag.ContinueOnError)

	fs.StringVar(&c.Addr, "addr", c.Addr, "address and port to listen on")
	fs.StringVar(&c.Storage, "storage", c.Storage, "user storage backend (memory, postgres)")
	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "PostgreSQL DSN")
	fs.StringVar(&c.SessionStore, "session-store", c.SessionStore, "session backend (storage, redis)")
	fs.StringVar(&c.ThrottleStore, "throttle-store", c.ThrottleStore, "login throttle backend (memory, redis)")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address")
	fs.StringVar(&c.UploadBackend, "upload-backend", c.UploadBackend, "picture storage (disk, s3)")
	fs.StringVar(&c.UploadDir, "upload-dir", c.UploadDir, "directory for uploaded pictures")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format (text, json)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
