package main

import "mspro-labs/emlak-ai/cmd"

func main() {
	cmd.Execute()
}
