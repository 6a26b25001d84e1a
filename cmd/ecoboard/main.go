package main

import "github.com/ecoboard/ecoboard/internal/cli"

func main() {
	cli.Execute()
}
