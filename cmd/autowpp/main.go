package main

import "github.com/ParesquiMCSA/AutoWpp/cmd/autowpp/commands"

func main() {
	commands.Execute()
}
