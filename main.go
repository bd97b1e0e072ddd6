// Rigweave - node-graph editor for character rigs.
//
// Rigweave lays out rig modules as typed nodes on a canvas, keeps an
// always-current recovery copy of the graph and drives an external 3D host
// to build and link the modules.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/rigweave/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
