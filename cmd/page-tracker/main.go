package main

import cmd "github.com/rohmanhakim/page-tracker/internal/cli"

func main() {
	cmd.Execute()
}
