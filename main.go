package main

import "PlayDeck/cmd"

func main() {
	cmd.Execute()
}
