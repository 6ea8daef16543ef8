package main

import "github.com/holmberd/go-segstream/cmd/segbench/cmd"

func main() {
	cmd.Execute()
}
