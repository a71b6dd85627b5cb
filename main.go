/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "coralrelay/cmd"

func main() {
	cmd.Execute()
}
