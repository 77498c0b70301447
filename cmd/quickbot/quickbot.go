package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/tigerbot-team/quickbot/pkg/config"
	"github.com/tigerbot-team/quickbot/pkg/encoder"
	"github.com/tigerbot-team/quickbot/pkg/hardware"
	"github.com/tigerbot-team/quickbot/pkg/link"
	"github.com/tigerbot-team/quickbot/pkg/motor"
	"github.com/tigerbot-team/quickbot/pkg/odometry"
	"github.com/tigerbot-team/quickbot/pkg/robot"
	"github.com/tigerbot-team/quickbot/pkg/telemetry"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli})

	app := cli.NewApp()
	app.Name = "quickbot"
	app.Usage = "run the QuickBot controller"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: config.DefaultPath,
			Usage: "YAML config file",
		},
		cli.StringFlag{
			Name:  "base-ip",
			Usage: "base station IP address",
		},
		cli.StringFlag{
			Name:  "robot-ip",
			Usage: "IP address to listen on",
		},
		cli.IntFlag{
			Name:  "port",
			Usage: "UDP port used by both ends",
		},
		cli.StringFlag{
			Name:  "serial",
			Usage: "use this serial device instead of UDP",
		},
		cli.BoolFlag{
			Name:  "dummy",
			Usage: "run against simulated hardware",
		},
		cli.IntFlag{
			Name:  "record",
			Usage: "record this many encoder samples, write them out and quit",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("QuickBot failed")
	}
}

func run(c *cli.Context) error {
	cfgPath := c.String("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := applyFlags(c, &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)
	if err := cfg.WriteInUse(cfgPath); err != nil {
		log.Warn().Err(err).Msg("Failed to record config in use")
	}

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel)

	hw, err := hardware.Open(cfg.Hardware)
	if err != nil {
		return errors.Wrap(err, "failed to open hardware")
	}
	l, err := link.Open(cfg.Link)
	if err != nil {
		_ = hw.Close()
		return errors.Wrap(err, "failed to open link")
	}

	odo := odometry.New()
	motors := motor.New(cfg.Motor, hw)
	sampler := encoder.New(cfg.Encoder, hw, motors, odo, cancel)
	bot := robot.New(cfg.Robot, hw, l, motors, odo)

	var wg sync.WaitGroup
	if cfg.Telemetry.Listen != "" {
		wg.Add(1)
		go telemetry.New(cfg.Telemetry, odo).Loop(ctx, &wg)
	}

	err = bot.Run(ctx, cancel, sampler)
	wg.Wait()
	return err
}

func applyFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.Bool("dummy") {
		cfg.Hardware.Backend = hardware.BackendDummy
	}
	if c.IsSet("record") {
		cfg.Encoder.RecordSamples = c.Int("record")
	}
	if c.IsSet("serial") {
		cfg.Link.Kind = link.KindSerial
		cfg.Link.SerialDevice = c.String("serial")
	}

	var err error
	if cfg.Link.BaseAddr, err = overrideAddr(cfg.Link.BaseAddr, c.String("base-ip"), c.Int("port")); err != nil {
		return errors.Wrap(err, "bad --base-ip/--port")
	}
	if cfg.Link.RobotAddr, err = overrideAddr(cfg.Link.RobotAddr, c.String("robot-ip"), c.Int("port")); err != nil {
		return errors.Wrap(err, "bad --robot-ip/--port")
	}
	return nil
}

// overrideAddr replaces the host and/or port of a host:port address; empty
// host or zero port leave that part alone.
func overrideAddr(addr, host string, port int) (string, error) {
	if host == "" && port == 0 {
		return addr, nil
	}
	oldHost, oldPort, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	if host == "" {
		host = oldHost
	}
	p := oldPort
	if port != 0 {
		p = strconv.Itoa(port)
	}
	return net.JoinHostPort(host, p), nil
}

func registerSignalHandlers(cancelFunc context.CancelFunc) {
	// Hook Ctrl-C to cause shut down.  A second signal skips the orderly
	// shutdown.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Info().Stringer("signal", s).Msg("Signal received, stopping")
		cancelFunc()
		s = <-signals
		log.Warn().Stringer("signal", s).Msg("Second signal, exiting immediately")
		os.Exit(1)
	}()
}
