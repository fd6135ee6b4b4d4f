package main

import "github.com/dbsmedya/gosymbol/cmd/gosymbol/cmd"

func main() {
	cmd.Execute()
}
