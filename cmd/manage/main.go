package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/apikit/internal/manage"
	"github.com/dmitrijs2005/apikit/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := manage.NewApp(ctx, cfg)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = app.Run(ctx, os.Args[1:])
	_ = app.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

}
