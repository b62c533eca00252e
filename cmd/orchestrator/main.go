package main

import (
	"os"

	"github.com/insightlm/orchestrator/orchestratorservice"
)

func main() {
	if err := orchestratorservice.Run(); err != nil {
		os.Exit(1)
	}
}
