package main

import "github.com/jmmolins87/NeuronIA-sub001/internal/cli"

func main() {
	cli.Execute()
}
