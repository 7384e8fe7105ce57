package main

import (
	"context"
	"log"
	"os"

	"github.com/nsridhar76/go-orderflow/internal/inventoryservice/bootstrap"
)

func main() {
	ctx := context.Background()
	configPath := os.Getenv("CONFIG_PATH")
	runtime, err := bootstrap.NewRuntime(ctx, configPath)
	if err != nil {
		log.Fatalf("bootstrap inventory-service runtime: %v", err)
	}
	if err := runtime.Run(ctx); err != nil {
		log.Fatalf("run inventory-service: %v", err)
	}
}
