package cmd

import (
	"github.com/creditflow/workflowdoctor/pkg/health"
	cli "github.com/urfave/cli/v3"
)

// Flags lists the options both binaries share. Every flag also reads its environment variable.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Workflow store URL: postgres://... for PostgreSQL, a path or file://... for the file store",
			Value:   "file://./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers, required with --event-bus=kafka",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL holding step latency data; empty disables slow step checks",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.Int64Flag{
			Name:    "min-wait-seconds",
			Usage:   "Duration zero-length wait steps are repaired to",
			Value:   health.DefaultConfig().MinWaitSeconds,
			Sources: cli.EnvVars("MIN_WAIT_SECONDS"),
		},
		&cli.BoolFlag{
			Name:    "delete-orphans",
			Usage:   "Let repairs delete unreachable steps nothing links to",
			Sources: cli.EnvVars("DELETE_ORPHANS"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// OptionsFromCommand reads the shared flags.
func OptionsFromCommand(command *cli.Command, serviceName string) Options {
	return Options{
		ServiceName:    serviceName,
		DatabaseURL:    command.String("database-url"),
		EventBus:       command.String("event-bus"),
		KafkaBrokers:   command.String("kafka-brokers"),
		RedisURL:       command.String("redis-url"),
		MinWaitSeconds: command.Int64("min-wait-seconds"),
		DeleteOrphans:  command.Bool("delete-orphans"),
		OtelEnabled:    command.Bool("otel-enabled"),
	}
}
