//go:generate weaver generate ./pkg/api ./pkg/services ./pkg/model ./pkg/trace ./pkg/metrics

package main

import (
	"context"
	"log"
	"os"

	"tweetapp/pkg/api"

	"github.com/ServiceWeaver/weaver"
	"github.com/joho/godotenv"
)

// this is an entry file for the tweetapp application
// the source code of services is in the "pkg" folder
func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("error loading .env file: %s", err.Error())
	}
	if err := weaver.Run(context.Background(), api.Serve); err != nil {
		log.Fatal(err)
	}
}
