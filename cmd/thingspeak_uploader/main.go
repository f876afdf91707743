// Reads sensor lines from a serial device and uploads the latest reading to ThingSpeak.
package main

func main() {
	Execute()
}
