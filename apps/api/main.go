package main

import (
	"flag"
	_ "net/http/pprof" // registers /debug/pprof on the debug server
)

func main() {
	showGraph := flag.Bool("graph", false, "print the dependency graph (dot format) on startup")
	flag.Parse()

	startWithDig(*showGraph)
}
