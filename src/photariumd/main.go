// photariumd is the gallery API server for the Photarium platform.
// It manages nested photo albums backed by pluggable storage providers.
package main

import (
	"github.com/photarium/photarium/src/photariumd/core"
)

func main() {
	core.Execute()
}
