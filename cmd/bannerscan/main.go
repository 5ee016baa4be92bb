package main

import "github.com/MeKo-Tech/bannerscan/cmd/bannerscan/cmd"

func main() {
	cmd.Execute()
}
