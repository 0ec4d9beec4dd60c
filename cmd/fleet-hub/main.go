package main

import (
	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/fleethub/cmd/fleet-hub/app"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	app.NewApp().Run()
}
