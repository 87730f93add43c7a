// Tila - single-instance infrastructure state.
// Track. Reconcile. Done.
package main

func main() {
	Execute()
}
