package main

import (
	"log"

	"github.com/harborside/authcore/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	a.Run()
}
