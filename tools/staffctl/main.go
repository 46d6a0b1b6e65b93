package main

import "github.com/md-rashed-zaman/staffsync/tools/staffctl/cmd"

func main() {
	cmd.Execute()
}
