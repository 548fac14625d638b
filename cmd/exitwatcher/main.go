package main

import "market-exit-alerts/internal/cli"

func main() {
	cli.Execute()
}
