package main

import "github.com/forPelevin/tapalign/internal/cli"

func main() { cli.Main() }
