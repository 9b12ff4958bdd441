package main

import "github.com/fenrix-tec/ioxport/cmd"

func main() {
	cmd.Execute()
}
