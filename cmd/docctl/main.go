// Package main is docctl, the operator CLI: totals preview, numbering
// maintenance, document export and schema migration.
package main

func main() {
	Execute()
}
