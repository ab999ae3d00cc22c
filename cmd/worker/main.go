// Command worker runs batch jobs against legacy address data: migration,
// export, sample generation and search index setup.
package main

func main() {
	Execute()
}
