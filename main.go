package main

import (
	"log"

	"event-workflow/cmd"
	_ "event-workflow/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
