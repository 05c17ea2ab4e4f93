package main

import (
	"github.com/replayctl/replayengine/cmd"
)

func main() {
	cmd.Execute()
}
