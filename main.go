package main

import "github.com/kozaktomas/pinalbum/cmd"

func main() {
	cmd.Execute()
}
