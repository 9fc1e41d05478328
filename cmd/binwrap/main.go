package main

import "github.com/oshokin/binwrap/cmd/binwrap/cmd"

func main() {
	cmd.Execute()
}
