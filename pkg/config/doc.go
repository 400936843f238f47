// Package config loads application configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11: the
// default .env file is read once per process (missing files are fine), then
// the environment is parsed into any struct annotated with `env` tags.
//
//	type HTTPConfig struct {
//	    Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg HTTPConfig
//	config.MustLoad(&cfg)
//
// Sentinel errors (ErrNilPointer, ErrParsingConfig) can be compared with
// errors.Is.
package config
