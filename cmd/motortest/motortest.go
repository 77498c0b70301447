package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tigerbot-team/quickbot/pkg/config"
	"github.com/tigerbot-team/quickbot/pkg/hardware"
	"github.com/tigerbot-team/quickbot/pkg/motor"
	"github.com/tigerbot-team/quickbot/pkg/wheel"
)

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

	motors := motor.New(cfg.Motor, hw)
	defer motors.Close()

	fmt.Println(
		`Commands:
    d <left> <right>  # Set duty on both wheels
    s                 # Stop
    q                 # Quit

<left>, <right>   Signed duty percentage, clamped to the configured range`)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "d":
			if len(parts) < 3 {
				fmt.Println("Not enough parameters")
				continue
			}
			var duty [2]int
			ok := true
			for _, side := range wheel.Both {
				duty[side], err = strconv.Atoi(parts[1+int(side)])
				if err != nil {
					fmt.Println("Expected int, not ", parts[1+int(side)])
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			l, r := motors.SetDuty(duty[wheel.Left], duty[wheel.Right])
			fmt.Printf("Applied (%d, %d); directions (%d, %d)\n", l, r,
				motors.Direction(wheel.Left), motors.Direction(wheel.Right))
		case "s":
			if err := motors.Stop(); err != nil {
				fmt.Println("Failed to stop: ", err)
			}
		case "q":
			return
		default:
			fmt.Println("Unknown command", parts[0])
		}
	}
}
