// enctest runs only the encoder sampler, optionally with the motors driven at
// a fixed duty, and prints the odometry as it goes.  Useful for picking the
// encoder thresholds.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/tigerbot-team/quickbot/pkg/config"
	"github.com/tigerbot-team/quickbot/pkg/encoder"
	"github.com/tigerbot-team/quickbot/pkg/hardware"
	"github.com/tigerbot-team/quickbot/pkg/motor"
	"github.com/tigerbot-team/quickbot/pkg/odometry"
	"github.com/tigerbot-team/quickbot/pkg/protocol"
	"github.com/tigerbot-team/quickbot/pkg/wheel"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli})

	app := cli.NewApp()
	app.Name = "enctest"
	app.Usage = "sample the wheel encoders and print odometry"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: config.DefaultPath,
			Usage: "YAML config file",
		},
		cli.BoolFlag{
			Name:  "dummy",
			Usage: "run against simulated hardware",
		},
		cli.StringFlag{
			Name:  "duty",
			Value: "0,0",
			Usage: "left,right duty to drive while sampling",
		},
		cli.DurationFlag{
			Name:  "duration",
			Value: 5 * time.Second,
			Usage: "how long to sample for",
		},
		cli.DurationFlag{
			Name:  "print-interval",
			Value: 250 * time.Millisecond,
		},
		cli.IntFlag{
			Name:  "record",
			Usage: "record this many samples to the configured record_path",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("enctest failed")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.Bool("dummy") {
		cfg.Hardware.Backend = hardware.BackendDummy
	}
	if c.IsSet("record") {
		cfg.Encoder.RecordSamples = c.Int("record")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	left, right, ok := protocol.ParseDutyPair(c.String("duty"))
	if !ok {
		return errors.Errorf("bad --duty %q, expected <left>,<right>", c.String("duty"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("duration"))
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		cancel()
	}()

	hw, err := hardware.Open(cfg.Hardware)
	if err != nil {
		return errors.Wrap(err, "failed to open hardware")
	}
	defer func() {
		if err := hw.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to release hardware")
		}
	}()

	odo := odometry.New()
	motors := motor.New(cfg.Motor, hw)
	defer func() {
		if err := motors.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to stop motors")
		}
	}()
	sampler := encoder.New(cfg.Encoder, hw, motors, odo, cancel)

	left, right = motors.SetDuty(left, right)
	log.Info().Int("left", left).Int("right", right).Msg("Driving motors")

	var wg sync.WaitGroup
	wg.Add(1)
	go sampler.Loop(ctx, &wg)

	fmt.Printf("%10s %8s %8s %10s %10s\n", "elapsed", "ticks L", "ticks R", "vel L", "vel R")
	start := time.Now()
	ticker := time.NewTicker(c.Duration("print-interval"))
	defer ticker.Stop()
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case <-ticker.C:
			printSnapshot(time.Since(start), odo.Snapshot())
		}
	}
	wg.Wait()
	printSnapshot(time.Since(start), odo.Snapshot())

	st := sampler.Stats()
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tleft\tright")
	fmt.Fprintf(tw, "ticks seen\t%d\t%d\n", st.Ticks[wheel.Left], st.Ticks[wheel.Right])
	fmt.Fprintf(tw, "coasting ticks\t%d\t%d\n", st.CoastTicks[wheel.Left], st.CoastTicks[wheel.Right])
	fmt.Fprintf(tw, "read failures\t%d\t%d\n", st.ReadFailures[wheel.Left], st.ReadFailures[wheel.Right])
	return tw.Flush()
}

func printSnapshot(elapsed time.Duration, snap odometry.Snapshot) {
	fmt.Printf("%10v %8d %8d %10s %10s\n",
		elapsed.Round(time.Millisecond),
		snap.Ticks[wheel.Left], snap.Ticks[wheel.Right],
		protocol.FormatFloat(snap.Velocity[wheel.Left]), protocol.FormatFloat(snap.Velocity[wheel.Right]))
}
