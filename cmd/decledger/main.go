package main

import "github.com/mvoigt/decledger/internal/cli"

func main() {
	cli.Execute()
}
