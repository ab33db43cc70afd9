// Command import-usuarios runs the bulk usuario import pipeline over a local
// spreadsheet/CSV file, recording the same audit run the HTTP endpoint does.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"nuam-exchange-api/config"
	"nuam-exchange-api/services"
	"nuam-exchange-api/utils"

	"github.com/joho/godotenv"
)

func main() {
	var (
		filePath = flag.String("file", "", "path to the .xlsx/.xls/.csv file to import")
		actor    = flag.Uint("actor", 0, "account id to attribute the import to (0 = none)")
		dryRun   = flag.Bool("dry-run", false, "validate the file without touching the database")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: import-usuarios -file <path> [-actor <account id>] [-dry-run]")
		os.Exit(2)
	}

	info, err := os.Stat(*filePath)
	if err != nil {
		log.Fatalf("cannot read %s: %v", *filePath, err)
	}
	if info.Size() > services.MaxImportFileBytes {
		log.Fatalf("%s exceeds the %d MB limit", *filePath, services.MaxImportFileBytes/(1024*1024))
	}

	if *dryRun {
		os.Exit(dryRunValidate(*filePath))
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}
	config.InitDB()

	var actorID *uint
	if *actor != 0 {
		id := uint(*actor)
		actorID = &id
	}

	job := services.NewUsuarioImportJobService(config.DB, services.LogObserver{})
	summary, run, err := job.ImportFile(*filePath, filepath.Base(*filePath), actorID)
	if err != nil {
		if run != nil {
			log.Printf("run %d failed: %v", run.ID, err)
		}
		log.Fatalf("import failed: %v", err)
	}

	fmt.Printf("run %d: %s\n", run.ID, run.Status)
	fmt.Printf("  created: %d\n", summary.Created)
	fmt.Printf("  updated: %d\n", summary.Updated)
	fmt.Printf("  errors:  %d\n", summary.TotalErrors)
	for _, rowErr := range summary.Errors {
		for _, fe := range rowErr.Errors {
			fmt.Printf("    row %d: %s\n", rowErr.Row, fe.Error())
		}
	}
}

// dryRunValidate applies the pipeline's pre-checks and row validation without
// a database connection. Duplicate resolution needs the registry, so it is
// skipped here.
func dryRunValidate(path string) int {
	dataset, err := utils.ReadDatasetFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error al leer archivo: %v\n", err)
		return 1
	}

	if missing := dataset.MissingColumns(services.RequiredImportColumns...); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "columnas faltantes: %s\n", strings.Join(missing, ", "))
		return 1
	}
	if dataset.Len() > services.MaxImportRows {
		fmt.Fprintf(os.Stderr, "el archivo excede el límite de %d registros\n", services.MaxImportRows)
		return 1
	}

	valid := 0
	badRows := 0
	for i := 0; i < dataset.Len(); i++ {
		outcome := services.ValidateRow(dataset.Row(i))
		if outcome.Rejected() {
			badRows++
		} else {
			valid++
		}
		for _, fe := range outcome.AllErrors() {
			fmt.Printf("  row %d: %s\n", i+2, fe.Error())
		}
	}

	fmt.Printf("dry run: %d rows, %d valid, %d rejected\n", dataset.Len(), valid, badRows)
	if badRows > 0 {
		return 1
	}
	return 0
}
