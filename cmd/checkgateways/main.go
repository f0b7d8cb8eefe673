// Command checkgateways probes public IPFS gateways for the acceptance-image
// CID and prints what each one serves. Diagnostic only; it does not touch the
// mint workflow.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultCID = "bafybeigoxzqzbnxsn35vq7lls3ljxdcwjafxvbvkivprsodzrptpiguysy"

var gatewayHosts = []string{
	"https://ipfs.io/ipfs/",
	"https://gateway.pinata.cloud/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://dweb.link/ipfs/",
}

func main() {
	cid := flag.String("cid", defaultCID, "content identifier to probe")
	timeout := flag.Duration("timeout", 15*time.Second, "per-gateway timeout")
	flag.Parse()

	client := &http.Client{}

	for _, host := range gatewayHosts {
		url := host + *cid
		fmt.Printf("\nTrying gateway: %s\n", url)
		if err := probe(client, url, *timeout); err != nil {
			fmt.Printf("Error with %s: %v\n", url, err)
		}
	}
}

func probe(client *http.Client, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	fmt.Printf("Status: %s\nContent-Type: %s\n", resp.Status, contentType)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}

	snippet := string(body)
	if !strings.Contains(contentType, "application/json") && len(snippet) > 200 {
		snippet = snippet[:200]
	}
	fmt.Printf("Content: %s\n", snippet)
	return nil
}
