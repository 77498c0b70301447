package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tigerbot-team/quickbot/pkg/hardware"
	"github.com/tigerbot-team/quickbot/pkg/link"
)

const testYaml = `
log_level: debug
link:
  base_addr: 10.0.0.1:6000
motor:
  min_duty: -80
  max_duty: 80
encoder:
  threshold: {left: 1200, right: 1400}
  sample_interval: 2ms
  record_samples: 500
robot:
  ir_interval: 20ms
hardware:
  backend: dummy
  ads1015_addr: 0x49
  ir_pins: [P9_35, P9_33]
telemetry:
  listen: ":8080"
`

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "quickbot.yaml")
	if err := os.WriteFile(path, []byte(contents), 0666); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	Convey("the defaults", t, func() {
		cfg := Default()

		Convey("are valid", func() {
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("talk to the base station over UDP", func() {
			So(cfg.Link.Kind, ShouldEqual, link.KindUDP)
			So(cfg.Link.BaseAddr, ShouldEqual, "192.168.7.1:5005")
			So(cfg.Link.RobotAddr, ShouldEqual, "192.168.7.2:5005")
		})

		Convey("match the QuickBot encoders", func() {
			So(cfg.Encoder.Threshold.Left, ShouldEqual, 1325)
			So(cfg.Encoder.Threshold.Right, ShouldEqual, 1325)
			So(cfg.Encoder.TicksPerRevolution, ShouldEqual, 16)
			So(cfg.Encoder.SampleInterval, ShouldEqual, time.Millisecond)
		})

		Convey("clamp duty to +/-100", func() {
			So(cfg.Motor.MinDuty, ShouldEqual, -100)
			So(cfg.Motor.MaxDuty, ShouldEqual, 100)
		})
	})
}

func TestFileLayer(t *testing.T) {
	Convey("loading a config file", t, func() {
		path := writeConfig(t, testYaml)
		cfg, err := Load(path)
		So(err, ShouldBeNil)

		Convey("overrides the keys it sets", func() {
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.Link.BaseAddr, ShouldEqual, "10.0.0.1:6000")
			So(cfg.Motor.MinDuty, ShouldEqual, -80)
			So(cfg.Encoder.Threshold.Left, ShouldEqual, 1200)
			So(cfg.Encoder.Threshold.Right, ShouldEqual, 1400)
			So(cfg.Encoder.SampleInterval, ShouldEqual, 2*time.Millisecond)
			So(cfg.Encoder.RecordSamples, ShouldEqual, 500)
			So(cfg.Robot.IRInterval, ShouldEqual, 20*time.Millisecond)
			So(cfg.Hardware.Backend, ShouldEqual, hardware.BackendDummy)
			So(cfg.Hardware.ADS1015Addr, ShouldEqual, 0x49)
			So(cfg.Hardware.IRPins, ShouldResemble, []string{"P9_35", "P9_33"})
			So(cfg.Telemetry.Listen, ShouldEqual, ":8080")
		})

		Convey("keeps defaults for the rest", func() {
			So(cfg.Link.RobotAddr, ShouldEqual, "192.168.7.2:5005")
			So(cfg.Encoder.TicksPerRevolution, ShouldEqual, 16)
			So(cfg.Encoder.RecordPath, ShouldEqual, "output.txt")
			So(cfg.Robot.IRReadAttempts, ShouldEqual, 3)
			So(cfg.Telemetry.Interval, ShouldEqual, 100*time.Millisecond)
		})

		Convey("the result is valid", func() {
			So(cfg.Validate(), ShouldBeNil)
		})
	})

	Convey("a missing file is not an error", t, func() {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		So(err, ShouldBeNil)
		So(cfg, ShouldResemble, Default())
	})

	Convey("a malformed file is an error", t, func() {
		_, err := Load(writeConfig(t, "motor: [this is not a map"))
		So(err, ShouldNotBeNil)
	})
}

func TestEnvLayer(t *testing.T) {
	Convey("environment variables", t, func() {
		path := writeConfig(t, testYaml)
		t.Setenv("QUICKBOT_LINK_BASE_ADDR", "10.0.0.2:7000")
		t.Setenv("QUICKBOT_MOTOR_MAX_DUTY", "60")
		t.Setenv("QUICKBOT_ENCODER_TICKS_PER_REVOLUTION", "32")
		t.Setenv("QUICKBOT_ROBOT_LOOP_INTERVAL", "5ms")
		t.Setenv("QUICKBOT_LOG_LEVEL", "warn")

		cfg, err := Load(path)
		So(err, ShouldBeNil)

		Convey("override both defaults and the file", func() {
			So(cfg.Link.BaseAddr, ShouldEqual, "10.0.0.2:7000")
			So(cfg.Motor.MaxDuty, ShouldEqual, 60)
			So(cfg.Encoder.TicksPerRevolution, ShouldEqual, 32)
			So(cfg.Robot.LoopInterval, ShouldEqual, 5*time.Millisecond)
			So(cfg.LogLevel, ShouldEqual, "warn")
		})

		Convey("leave file values they do not name", func() {
			So(cfg.Motor.MinDuty, ShouldEqual, -80)
		})
	})

	Convey("a malformed environment variable is an error", t, func() {
		t.Setenv("QUICKBOT_MOTOR_MAX_DUTY", "lots")
		_, err := Load("")
		So(err, ShouldNotBeNil)
	})
}

func TestInUseCopy(t *testing.T) {
	Convey("the in-use copy", t, func() {
		So(InUsePath("/cfg/quickbot.yaml"), ShouldEqual, "/cfg/quickbot-in-use.yaml")

		path := writeConfig(t, testYaml)
		cfg, err := Load(path)
		So(err, ShouldBeNil)
		So(cfg.WriteInUse(path), ShouldBeNil)

		Convey("loads back to the same config", func() {
			var reloaded Config
			So(reloaded.LoadFile(InUsePath(path)), ShouldBeNil)
			So(reloaded, ShouldResemble, cfg)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("validation rejects", t, func() {
		cfg := Default()

		Convey("an inverted duty range", func() {
			cfg.Motor.MinDuty = 50
			cfg.Motor.MaxDuty = 10
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("a duty range that excludes zero", func() {
			cfg.Motor.MinDuty = 10
			cfg.Motor.MaxDuty = 100
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("a negative max_duty", func() {
			cfg.Motor.MinDuty = -100
			cfg.Motor.MaxDuty = -10
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("a duty range wider than the PWM outputs", func() {
			cfg.Motor.MaxDuty = 150
			So(cfg.Validate(), ShouldNotBeNil)
			cfg.Motor.MaxDuty = 100
			cfg.Motor.MinDuty = -101
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("a non-positive ticks per revolution", func() {
			cfg.Encoder.TicksPerRevolution = 0
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("a missing pin on real hardware", func() {
			cfg.Hardware.PWMPins.Right = ""
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("an unknown log level", func() {
			cfg.LogLevel = "chatty"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("an unknown link kind", func() {
			cfg.Link.Kind = "smoke-signals"
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})

	Convey("validation ignores pins on the dummy board", t, func() {
		cfg := Default()
		cfg.Hardware.Backend = hardware.BackendDummy
		cfg.Hardware.PWMPins.Right = ""
		So(cfg.Validate(), ShouldBeNil)
	})
}
