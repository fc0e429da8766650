package main

import (
	"github.com/safetyjim/safetyjim/common/run"
)

func main() {
	run.Init()
	run.Run()
}
