package main

import "github/chapool/dot-wallet/cmd"

func main() {
	cmd.Execute()
}
