package main

import (
	"fmt"
	"io"
	"os"

	_ "ariga.io/atlas-go-sdk/recordriver" // import used by the CLI tool
	"ariga.io/atlas-provider-gorm/gormschema"

	"stratbot/src/database"
)

func main() {
	statements, err := gormschema.New("postgres").Load(database.DbTables...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load GORM schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`)

	io.WriteString(os.Stdout, statements) //nolint:errcheck
}
