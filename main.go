package main

import "github.com/KaramelBytes/sigloom-cli/cmd"

func main() {
	cmd.Execute()
}
