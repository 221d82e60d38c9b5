package main

import "github.com/repolens-dev/repolens/internal/cli"

func main() {
	cli.Execute()
}
