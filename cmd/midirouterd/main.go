package main

import (
	"os"

	"github.com/rtpmididns/midirouter/cmd/midirouterd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
