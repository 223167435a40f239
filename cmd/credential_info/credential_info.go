package main

import (
	"encoding/base64"
	"flag"
	"fmt"

	"github.com/helinwang/prodcon/pkg/ledger"
)

func main() {
	c := flag.String("c", "", "path to the credential file")
	flag.Parse()

	credential, err := ledger.LoadCredential(*c)
	if err != nil {
		panic(err)
	}

	signer, err := credential.Signer()
	if err != nil {
		panic(err)
	}

	fmt.Println("credential info (bytes encoded using base64):")
	fmt.Printf("Scheme: %s\n", credential.Scheme)
	fmt.Printf("SK: %s\n", base64.StdEncoding.EncodeToString(credential.SK))
	fmt.Printf("PK: %s\n", base64.StdEncoding.EncodeToString(signer.PublicKey()))
}
