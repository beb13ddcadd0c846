// Command taskweave decomposes a request into subtasks and runs them in
// dependency order against a reasoning service.
package main

func main() {
	Execute()
}
