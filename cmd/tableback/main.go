package main

import "github.com/pcmrules/TableBack/cmd"

func main() {
	cmd.Execute()
}
