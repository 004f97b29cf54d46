package main

import "github.com/nkruiper/ls-updater/cmd/ls-updater/cmd"

func main() {
	cmd.Execute()
}
