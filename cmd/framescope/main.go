// Command framescope profiles a synthetic component tree and inspects the
// recorded frames.
package main

import "github.com/sarchlab/framescope/cmd/framescope/cmd"

func main() {
	cmd.Execute()
}
