package main

import (
	"context"
	"log"
	"os"

	"github.com/securevault/securevault/internal/app/bootstrap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/default.yaml"
	}

	ctx := context.Background()
	runtime, err := bootstrap.NewGatewayRuntime(ctx, configPath)
	if err != nil {
		log.Fatalf("bootstrap gateway runtime: %v", err)
	}
	if err := runtime.Run(ctx); err != nil {
		log.Fatalf("run gateway: %v", err)
	}
}
