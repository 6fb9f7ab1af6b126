package main

import (
	"os"

	"github.com/shipit-build/shipit/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
