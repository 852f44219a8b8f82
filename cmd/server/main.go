package main

import "github.com/Togather-Foundation/geowidget/cmd/server/cmd"

func main() {
	cmd.Execute()
}
