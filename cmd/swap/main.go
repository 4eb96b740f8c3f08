package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "swap CLI"
	app.Usage = "Command line interface for swapd daemon operators"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "address of the swapd registry interface",
			Value: "http://localhost:9961",
		},
	}
	app.Commands = append(
		app.Commands,
		&commit,
		&hash,
		&verify,
		&createswap,
		&withdraw,
		&refund,
		&getswap,
		&listswaps,
		&count,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func baseUrl(ctx *cli.Context) string {
	return ctx.String("addr")
}

func doGet(ctx *cli.Context, path string, query url.Values) error {
	endpoint := baseUrl(ctx) + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	resp, err := httpClient.Get(endpoint)
	if err != nil {
		return err
	}
	return printResp(resp)
}

func doPost(ctx *cli.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(
		baseUrl(ctx)+path, "application/json", bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}
	return printResp(resp)
}

func printResp(resp *http.Response) error {
	defer resp.Body.Close()

	payload, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, payload, "", "\t"); err != nil {
		fmt.Println(string(payload))
		return nil
	}

	fmt.Println(indented.String())
	return nil
}

func printJSON(resp interface{}) {
	payload, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Println("unable to encode response: ", err)
		return
	}
	fmt.Println(string(payload))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[swap] %v\n", err)
	os.Exit(1)
}
