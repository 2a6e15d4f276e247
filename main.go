package main

import "mspro-labs/office-cart/cmd"

func main() {
	cmd.Execute()
}
