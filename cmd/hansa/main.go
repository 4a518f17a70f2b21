package main

import (
	"log"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
