package main

import "github.com/polymarket/polymarket-cli/cmd/polymarket-packager/cmd"

func main() {
	cmd.Execute()
}
