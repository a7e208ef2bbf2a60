package main

import (
	"log"

	"mpesa-gateway/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
