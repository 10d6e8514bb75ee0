// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/ccg-dev/ccg/cmd/ccg"

func main() {
	cmd.Execute()
}
