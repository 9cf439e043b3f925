package main

import "github.com/kalverra/jira-insights/cmd"

func main() {
	cmd.Execute()
}
