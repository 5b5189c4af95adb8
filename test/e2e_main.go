package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gospellibrary/sdk-go/catalog"
	"github.com/gospellibrary/sdk-go/client"
	"github.com/gospellibrary/sdk-go/types"
)

const (
	bookOfMormonItemID = 128350135
	bookOfMormonURI    = "/scriptures/bofm"
)

func main() {
	fmt.Println("================================================================================")
	fmt.Println("  GOSPEL LIBRARY SDK END-TO-END TEST")
	fmt.Println("  Resolve Version → Download Catalog → Query")
	fmt.Println("================================================================================")
	fmt.Println("")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Step 1: Load configuration
	fmt.Println("Step 1: Load Configuration")
	fmt.Println("--------------------------------------------------------------------------------")
	cfg, err := client.LoadConfig()
	if err != nil {
		fail("Failed to load configuration", err)
	}
	if len(os.Args) > 1 {
		cfg.CachePath = os.Args[1]
	}
	fmt.Printf("✅ Configuration loaded\n")
	fmt.Printf("   Base URL: %s\n", cfg.BaseURL)
	fmt.Printf("   Schema: %s\n", cfg.SchemaVersion)
	fmt.Printf("   Cache: %s\n\n", cfg.CachePath)

	c, err := catalog.NewClient(cfg)
	if err != nil {
		fail("Failed to create client", err)
	}

	// Step 2: Languages index
	fmt.Println("Step 2: List Languages")
	fmt.Println("--------------------------------------------------------------------------------")
	languages, found, err := c.Languages(ctx)
	if err != nil || !found {
		fail("Failed to list languages", err)
	}
	fmt.Printf("✅ %d languages available\n\n", len(languages))

	// Step 3: Current versions
	fmt.Println("Step 3: Resolve Current Versions")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, lang := range []string{"eng", "spa"} {
		version, found, err := c.CurrentVersion(ctx, lang)
		if err != nil || !found {
			fail("Failed to resolve version for "+lang, err)
		}
		fmt.Printf("✅ %s: catalog version %d\n", lang, version)
	}
	fmt.Println("")

	// Step 4: Download catalogs
	fmt.Println("Step 4: Download Catalogs")
	fmt.Println("--------------------------------------------------------------------------------")
	english := openCatalog(ctx, c, "eng")
	spanish := openCatalog(ctx, c, "spa")
	fmt.Println("")

	// Step 5: Query
	fmt.Println("Step 5: Query Catalogs")
	fmt.Println("--------------------------------------------------------------------------------")
	byID, found, err := english.Item(ctx, types.ItemRef{ID: bookOfMormonItemID})
	if err != nil || !found {
		fail("Failed to load item by id", err)
	}
	byURI, found, err := english.Item(ctx, types.ItemRef{URI: bookOfMormonURI})
	if err != nil || !found {
		fail("Failed to load item by uri", err)
	}
	if byID["external_id"] != byURI["external_id"] {
		fail("Item lookups disagree", fmt.Errorf("%v != %v", byID["external_id"], byURI["external_id"]))
	}
	if version, ok := byID.Int64("version"); !ok || version < 1 {
		fail("Item has no version", nil)
	}
	fmt.Printf("✅ Item %d: %v\n", bookOfMormonItemID, byID["title"])

	english1, _, err := english.LanguageName(ctx, 1)
	if err != nil {
		fail("Failed to load English language name", err)
	}
	spanish1, _, err := spanish.LanguageName(ctx, 1)
	if err != nil {
		fail("Failed to load Spanish language name", err)
	}
	fmt.Printf("✅ Language 1: %q (eng), %q (spa)\n", english1, spanish1)

	items, err := english.Items(ctx, nil)
	if err != nil {
		fail("Failed to list items", err)
	}
	fmt.Printf("✅ %d items in the English catalog\n\n", len(items))

	// Step 6: Stats
	fmt.Println("Step 6: Analyze Catalog")
	fmt.Println("--------------------------------------------------------------------------------")
	path, err := english.Path(ctx)
	if err != nil {
		fail("Failed to locate catalog", err)
	}
	result, err := catalog.Analyze(ctx, path)
	if err != nil {
		fail("Failed to analyze catalog", err)
	}
	for name, count := range result.RowCounts() {
		fmt.Printf("   %-24s %d rows\n", name, count)
	}

	fmt.Println("")
	fmt.Println("================================================================================")
	fmt.Println("  ✅ END-TO-END TEST PASSED")
	fmt.Println("================================================================================")
}

func openCatalog(ctx context.Context, c *catalog.Client, lang string) *catalog.DB {
	db, err := c.Catalog(ctx, lang, 0)
	if err != nil {
		fail("Failed to open catalog "+lang, err)
	}
	start := time.Now()
	path, err := db.Path(ctx)
	if err != nil {
		fail("Failed to download catalog "+lang, err)
	}
	fmt.Printf("✅ %s ready in %s\n   %s\n", db.Key(), time.Since(start).Round(time.Millisecond), path)
	return db
}

func fail(msg string, err error) {
	fmt.Printf("❌ %s: %v\n", msg, err)
	os.Exit(1)
}
