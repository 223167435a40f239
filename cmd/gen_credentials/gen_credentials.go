package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/helinwang/prodcon/pkg/ledger"
)

func main() {
	num := flag.Int("N", 1, "number of credentials to generate")
	scheme := flag.String("scheme", string(ledger.Secp256k1), "signature scheme: secp256k1 or bls")
	dir := flag.String("dir", "./credentials", "output directory name")
	flag.Parse()

	err := os.MkdirAll(*dir, os.ModePerm)
	if err != nil {
		panic(err)
	}

	for i := 0; i < *num; i++ {
		c, err := ledger.NewCredential(ledger.Scheme(*scheme))
		if err != nil {
			panic(err)
		}

		err = ledger.SaveCredential(filepath.Join(*dir, fmt.Sprintf("prodcon-%d", i)), c)
		if err != nil {
			panic(err)
		}
	}
}
