package main

import "github.com/glimps-re/defhost/cmd/cli"

func main() {
	cli.Main()
}
