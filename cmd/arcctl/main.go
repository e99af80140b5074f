package main

import "github.com/YinMo19/Arcaea-server-rs-sub001/internal/cli"

func main() {
	cli.Execute()
}
