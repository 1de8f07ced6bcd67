// Package main 是 casectl 命令行客户端的入口点
package main

import "casebook-server/internal/cli"

func main() {
	cli.Execute()
}
