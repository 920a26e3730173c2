package main

import "danyak/cmd"

func main() {
	cmd.Execute()
}
