package main

import "github.com/polymarket/polymarket-cli/cmd/polymarket/cmd"

func main() {
	cmd.Execute()
}
