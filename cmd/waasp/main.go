package main

import "waasp/internal/cli"

func main() {
	cli.Execute()
}
