package main

import "leakaudit/cmd"

func main() {
	cmd.Execute()
}
