package main

import "github.com/jmehdipour/leadsite/cmd"

func main() {
	cmd.Execute()
}
