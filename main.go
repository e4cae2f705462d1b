package main

import "github.com/fbz-tec/chxport/cmd"

func main() {
	cmd.Execute()
}
