package main

import "payguard/internal/cli"

func main() {
	cli.Execute()
}
