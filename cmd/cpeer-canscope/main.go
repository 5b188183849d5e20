package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/canscope/cmd/cpeer-canscope/app"
)

func main() {
	if err := app.NewApp().Run(); err != nil {
		app.PrintError(err)
		os.Exit(1)
	}
}
