// tokengen はゲートウェイのアクセストークンを発行・検証する開発用CLI。
//
//	tokengen issue --id 123
//	tokengen verify <token>
//	tokengen check --url http://localhost:8080 --token <token>
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
