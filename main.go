package main

import "VoiceMorph/cmd"

func main() {
	cmd.Execute()
}
