package main

import "modcore/cmd"

func main() {
	cmd.Execute()
}
