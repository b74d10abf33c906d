package main

import "github.com/cindergrace/depot/cmd"

func main() {
	cmd.Execute()
}
