package main

import "adwise/cmd"

func main() {
	cmd.Execute()
}
