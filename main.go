package main

import (
	"yukti-backend/cli"
)

func main() {
	cli.Execute()
}
