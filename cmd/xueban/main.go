// Command xueban runs the Xueban XP ledger, badge and bounty service.
package main

import "github.com/xueban-network/xueban/internal/cli"

func main() {
	cli.Execute()
}
