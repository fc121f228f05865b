package main

import "erp/cmd"

func main() {
	cmd.Execute()
}
