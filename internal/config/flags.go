package config

import (
	"github.com/urfave/cli/v2"
)

// Flags are the command line overrides shared by every binary.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config `FILE`"},
		&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv `FILE` loaded before the environment"},
		&cli.StringFlag{Name: "storage", Usage: "storage backend: memory, postgres or hybrid"},
		&cli.StringFlag{Name: "postgres-dsn", Usage: "PostgreSQL connection string"},
		&cli.StringFlag{Name: "clickhouse-dsn", Usage: "ClickHouse connection string"},
		&cli.StringFlag{Name: "midgard-url", Usage: "Midgard base URL"},
		&cli.StringFlag{Name: "pools", Usage: "comma separated pools, e.g. BTC.BTC,ETH.ETH"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: "log-format", Usage: "console or json"},
		&cli.StringFlag{Name: "log-file", Usage: "also write JSON logs to a rotating `FILE`"},
	}
}

// FromCLI loads the configuration named by the --config and --env-file
// flags and applies any flag that was set explicitly. It does not validate.
func FromCLI(c *cli.Context) (*Config, error) {
	cfg, err := Load(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, err
	}

	set := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	set("storage", &cfg.Storage.Backend)
	set("postgres-dsn", &cfg.Storage.PostgresDSN)
	set("clickhouse-dsn", &cfg.Storage.ClickhouseDSN)
	set("midgard-url", &cfg.Midgard.URL)
	set("log-level", &cfg.Log.Level)
	set("log-format", &cfg.Log.Format)
	set("log-file", &cfg.Log.File)
	if c.IsSet("pools") {
		cfg.Ingestion.Pools = SplitList(c.String("pools"))
	}
	return cfg, nil
}
