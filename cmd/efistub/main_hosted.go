//go:build !tamago

package main

import (
	"fmt"
	"log"
	"runtime"
)

// errHosted is reported when efistub is built for an operating system
// instead of the UEFI firmware runtime.
func errHosted() error {
	return fmt.Errorf("efistub runs as a UEFI application, rebuild with GOOS=tamago (this build is %s/%s)", runtime.GOOS, runtime.GOARCH)
}

func main() {
	log.Fatal(errHosted())
}
