package main

import "github.com/CodeChoreography/dicomity/cmd/dicomity-cli/cmd"

func main() {
	cmd.Execute()
}
