package main

import "dedup/cmd"

func main() {
	cmd.Execute()
}
