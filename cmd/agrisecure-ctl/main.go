package main

import "github.com/oshokin/agrisecure/cmd/agrisecure-ctl/cmd"

func main() {
	cmd.Execute()
}
