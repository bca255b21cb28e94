package main

import "github.com/notargets/gosem/cmd"

func main() {
	cmd.Execute()
}
