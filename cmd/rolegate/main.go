package main

import "github.com/RoleGate/rolegate/cmd/rolegate/cmd"

func main() {
	cmd.Execute()
}
