package main

import "asset-bank/cmd"

func main() {
	cmd.Execute()
}
