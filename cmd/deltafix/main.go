// deltafix -- randomized delta fixtures for multicast source-filter testing.
package main

import "github.com/dantte-lp/deltafix/cmd/deltafix/commands"

func main() {
	commands.Execute()
}
