package main

import "github.com/hashrace/coordinator/app/miner/cmd"

func main() {
	cmd.Execute()
}
