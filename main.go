package main

import "github.com/podletter/newsletter-api/cmd"

func main() {
	cmd.Execute()
}
