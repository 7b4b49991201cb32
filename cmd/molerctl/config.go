package main

import "time"

// Config is the ambient process configuration for molerctl, loaded from
// the environment (and an optional .env file) via core/config.
type Config struct {
	AppName string `env:"MOLER_APP_NAME" envDefault:"molerctl"`

	TargetAddr string        `env:"MOLER_TARGET_ADDR,required"`
	DialTimeout time.Duration `env:"MOLER_DIAL_TIMEOUT" envDefault:"10s"`

	DevicesFile string `env:"MOLER_DEVICES_FILE" envDefault:"devices.yaml"`

	CommandTimeout time.Duration `env:"MOLER_COMMAND_TIMEOUT" envDefault:"5s"`
	RequestLine    string        `env:"MOLER_REQUEST_LINE" envDefault:"AT+CGATT=1"`

	JSONLogs bool `env:"MOLER_JSON_LOGS" envDefault:"false"`
}
