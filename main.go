package main

import "github.com/rayendito/GPTnano/cmd"

func main() {
	cmd.Execute()
}
