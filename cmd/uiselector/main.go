package main

import "github.com/devicelab-dev/uiselector/pkg/cli"

func main() {
	cli.Execute()
}
