package main

import "github.com/yz4230/shipd/cmd"

func main() {
	cmd.Execute()
}
