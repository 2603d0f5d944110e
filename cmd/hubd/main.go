package main

import (
	"chathub/server"
)

func main() {
	server.Main()
}
