package main

import "github.com/serverpulse/agent/internal/cli"

func main() {
	cli.Execute()
}
