package main

import "github.com/esgportal/apiserver/cmd"

func main() {
	cmd.Execute()
}
