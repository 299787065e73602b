// Command hostbridge runs the bridge against a simulated host.
package main

func main() {
	Execute()
}
