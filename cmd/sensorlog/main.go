package main

import (
	"sensorlog/cmd/sensorlog/commands"
	"sensorlog/internal/components/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
