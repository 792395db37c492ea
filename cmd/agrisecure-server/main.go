package main

import "github.com/oshokin/agrisecure/cmd/agrisecure-server/cmd"

func main() {
	cmd.Execute()
}
