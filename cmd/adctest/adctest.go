package main

import (
	"fmt"
	"os"
	"time"

	"github.com/tigerbot-team/quickbot/pkg/config"
	"github.com/tigerbot-team/quickbot/pkg/hardware"
	"github.com/tigerbot-team/quickbot/pkg/wheel"
)

// Prints the raw encoder and IR readings twice a second, for checking the
// wiring and picking encoder thresholds.
func main() {
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		fmt.Println("Failed to load config", err)
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "-dummy" {
		cfg.Hardware.Backend = hardware.BackendDummy
	}

	hw, err := hardware.Open(cfg.Hardware)
	if err != nil {
		fmt.Println("Failed to open hardware", err)
		return
	}
	defer hw.Close()

	for range time.NewTicker(500 * time.Millisecond).C {
		for _, side := range wheel.Both {
			v, err := hw.Encoder(side).Read()
			edge := "below"
			if v >= cfg.Encoder.Threshold.Get(side) {
				edge = "above"
			}
			fmt.Printf("enc %s: %4d %s %v  ", side, v, edge, err)
		}
		for i, in := range hw.IR() {
			v, err := in.Read()
			fmt.Printf("ir%d: %4d %v  ", i, v, err)
		}
		fmt.Println()
	}
}
