package main

import "github.com/finassist/finassist/internal/cmd"

func main() {
	cmd.Execute()
}
