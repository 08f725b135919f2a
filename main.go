package main

import "github.com/devicelab-dev/harmony-runner/pkg/cli"

func main() {
	cli.Execute()
}
