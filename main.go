package main

import "github.com/Norgate-AV/lakefetch/cmd"

func main() {
	cmd.Execute()
}
