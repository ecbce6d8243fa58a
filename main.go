package main

import "github.com/enzo-prism/ship-api/cmd"

func main() {
	cmd.Execute()
}
