package main

import (
	"context"
	"log"

	"github.com/mmesim/provisioning-api/internal/app/api"
)

func main() {
	if err := api.Run(context.Background()); err != nil {
		log.Fatalf("provisioning API failed: %v", err)
	}
}
