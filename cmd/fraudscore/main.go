package main

import "github.com/mchmarny/fraudscore/pkg/cli"

func main() {
	cli.Execute()
}
