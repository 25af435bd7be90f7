package main

import (
	"fmt"

	"github.com/agentflowhq/agentflow"
)

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	fmt.Println(agentflow.GetVersion().String())
	return nil
}
