package main

import "github.com/bryanchriswhite/wmipc/cmd/wmipc/commands"

func main() {
	commands.Execute()
}
