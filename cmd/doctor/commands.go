package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/cmd"
	"github.com/creditflow/workflowdoctor/pkg/log"
	"github.com/creditflow/workflowdoctor/pkg/scheduler"
	"github.com/creditflow/workflowdoctor/pkg/services"
	json "github.com/goccy/go-json"
	cli "github.com/urfave/cli/v3"
)

const (
	serviceName     = "workflowdoctor-cli"
	shutdownTimeout = 30 * time.Second
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "doctor",
		Usage:                 "Analyze and repair client automation workflows",
		EnableShellCompletion: true,
		Flags:                 cmd.Flags(),
		Commands: []*cli.Command{
			analyzeCommand(),
			repairCommand(),
			batchCommand(),
			sweepCommand(),
		},
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Print the health report of a workflow",
		ArgsUsage: "<workflow-id>",
		Action: withRuntime(func(ctx context.Context, command *cli.Command, service *services.WorkflowHealth) error {
			report, err := service.AnalyzeWorkflowHealth(ctx, command.Args().First())
			if err != nil {
				return err
			}

			return printJSON(command.Root().Writer, report)
		}),
	}
}

func repairCommand() *cli.Command {
	return &cli.Command{
		Name:      "repair",
		Usage:     "Apply fixes to a workflow and print the repair result",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "auto-fix",
				Usage: "Apply fixes; without it every issue is reported as skipped",
			},
			&cli.StringSliceFlag{
				Name:  "issue",
				Usage: "Issue id to fix, repeatable; defaults to every issue of the current analysis",
			},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, service *services.WorkflowHealth) error {
			result, err := service.RepairWorkflow(ctx, command.Args().First(), services.RepairRequest{
				AutoFix:  command.Bool("auto-fix"),
				IssueIDs: command.StringSlice("issue"),
			})
			if err != nil {
				return err
			}

			return printJSON(command.Root().Writer, result)
		}),
	}
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Analyze many workflows; without ids every active workflow is analyzed",
		ArgsUsage: "[workflow-id...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-score",
				Usage: "Count workflows scoring below this threshold",
			},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, service *services.WorkflowHealth) error {
			summary, err := service.BatchAnalyze(ctx, services.BatchRequest{
				WorkflowIDs:    command.Args().Slice(),
				MinHealthScore: command.Int("min-score"),
			})
			if err != nil {
				return err
			}

			return printJSON(command.Root().Writer, summary)
		}),
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run the health sweep on a cron schedule, or once with --once",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression of the sweep",
				Value:   scheduler.DefaultSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single sweep, print its digest and exit",
			},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, service *services.WorkflowHealth) error {
			logger := log.WithModule("sweep")

			sweeps, err := scheduler.NewSweepScheduler(command.String("schedule"), service, logger)
			if err != nil {
				return err
			}

			if command.Bool("once") {
				return printJSON(command.Root().Writer, sweeps.RunOnce(ctx))
			}

			if err := sweeps.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			return sweeps.Stop(stopCtx)
		}),
	}
}

type serviceAction func(ctx context.Context, command *cli.Command, service *services.WorkflowHealth) error

// withRuntime wires the service from the root flags around action.
func withRuntime(action serviceAction) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		root := command.Root()
		log.Setup(root.String("log-level"))

		logger := log.WithModule("cli")

		runtime, err := cmd.NewRuntime(ctx, logger, cmd.OptionsFromCommand(root, serviceName))
		if err != nil {
			return err
		}

		defer runtime.Close(context.WithoutCancel(ctx))

		return action(log.WithLogger(ctx, logger.With("command", command.Name)), command, runtime.Service)
	}
}

func printJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}
