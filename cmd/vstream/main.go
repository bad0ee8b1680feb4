package main

import "github.com/awahab1116/video-streaming/internal/cli"

func main() {
	cli.Execute()
}
