package main

import "github.com/vibast-solutions/ms-go-amazon-payments/cmd"

func main() {
	cmd.Execute()
}
