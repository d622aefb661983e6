package main

import (
	"github.com/rzbill/herd/pkg/cli/cmd"
)

func main() {
	cmd.Execute()
}
