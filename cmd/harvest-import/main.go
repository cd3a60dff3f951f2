// harvest-import runs a harvest or transport import from a local xlsx file
// without going through the HTTP surface. Useful for backfills and for
// operators loading historical sheets.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//   REDIS_ADDRESS=... go run ./cmd/harvest-import -business <uuid> -file sheet.xlsx [-type harvest|transport]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/agrifocus/plantation_backend/config"
	"bitbucket.org/agrifocus/plantation_backend/importer"
	"bitbucket.org/agrifocus/plantation_backend/models"
	"bitbucket.org/agrifocus/plantation_backend/utils"
	"github.com/xuri/excelize/v2"
)

func main() {
	businessID := flag.String("business", "", "business id to import into")
	filePath := flag.String("file", "", "path to the xlsx file")
	importType := flag.String("type", "harvest", "import type: harvest or transport")
	flag.Parse()

	if *businessID == "" || *filePath == "" {
		fmt.Fprintln(os.Stderr, "-business and -file are required")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, *businessID)
	ctx = utils.SetUserNameInContext(ctx, "cli")

	f, err := excelize.OpenFile(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open workbook: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		fmt.Fprintln(os.Stderr, "workbook has no sheets")
		os.Exit(1)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read sheet: %v\n", err)
		os.Exit(1)
	}

	var run interface{}
	switch *importType {
	case "harvest":
		run, err = importer.RunHarvestImport(ctx, rows, *filePath)
	case "transport":
		run, err = importer.RunTransportImport(ctx, rows, *filePath)
	default:
		fmt.Fprintf(os.Stderr, "unknown import type %q\n", *importType)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(run, "", "  ")
	fmt.Println(string(out))
}
