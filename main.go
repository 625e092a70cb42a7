package main

import "github.com/edgeflare/kafkaform/cmd/kafkaform"

func main() {
	kafkaform.Main()
}
