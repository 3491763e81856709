package main

import (
	"os"

	"github.com/avgjoe1017/et-heatmap-v2/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
