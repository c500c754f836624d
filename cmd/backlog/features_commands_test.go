package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"backlog/internal/api"
	"backlog/internal/features"
	"backlog/internal/testsupport"
)

func TestFeaturesAddShowAndNext(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"features", "add", "login works",
		"--category", "auth", "-d", "user can log in", "-s", "open login", "-s", "submit"}, env.configPath)
	if err != nil {
		t.Fatalf("features add: %v", err)
	}
	requireContains(t, out, "Created feature 1 (priority 1): auth login works")

	out, _, err = runCLI(t, []string{"features", "show", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("features show: %v", err)
	}
	requireContains(t, out, "Feature 1: login works")
	requireContains(t, out, "2. submit")

	out, _, err = runCLI(t, []string{"features", "next", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("features next: %v", err)
	}
	var next api.Feature
	if err := json.Unmarshal([]byte(out), &next); err != nil {
		t.Fatalf("decode next: %v (%s)", err, out)
	}
	if next.ID != 1 || next.Passes {
		t.Fatalf("unexpected next feature %+v", next)
	}
}

func TestFeaturesAddRejectsInvalidInputLocally(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"features", "add", "x", "--category", "auth", "-d", "desc"}, env.configPath)
	if !errors.Is(err, features.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	requireContains(t, describeError(err), "steps")

	stats, statsErr := env.store.Stats(t.Context())
	if statsErr != nil || stats.Total != 0 {
		t.Fatalf("nothing should have been created: %+v, %v", stats, statsErr)
	}
}

func TestFeaturesImportArrayAndDocument(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()

	arrayPath := filepath.Join(dir, "features.json")
	array := `[{"category":"a","name":"one","description":"d1","steps":["s"]},
	           {"category":"a","name":"two","description":"d2","steps":["s"]}]`
	if err := os.WriteFile(arrayPath, []byte(array), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, _, err := runCLI(t, []string{"features", "import", arrayPath}, env.configPath)
	if err != nil {
		t.Fatalf("import array: %v", err)
	}
	requireContains(t, out, "Created 2 features")

	docPath := filepath.Join(dir, "bulk.json")
	doc := `{"features":[{"category":"b","name":"three","description":"d3","steps":["s"]}]}`
	if err := os.WriteFile(docPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := runCLI(t, []string{"features", "import", docPath}, env.configPath); err != nil {
		t.Fatalf("import document: %v", err)
	}

	stats, err := env.store.Stats(t.Context())
	if err != nil || stats.Total != 3 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
}

func TestFeaturesImportRejectsWholeBatch(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	body := `[{"category":"a","name":"ok","description":"d","steps":["s"]},
	          {"category":"a","name":"   ","description":"d","steps":["s"]}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := runCLI(t, []string{"features", "import", path}, env.configPath)
	var ve *features.ValidationError
	if !errors.As(err, &ve) || ve.Index != 1 || ve.Field != "name" {
		t.Fatalf("expected name error at index 1, got %v", err)
	}
	stats, _ := env.store.Stats(t.Context())
	if stats.Total != 0 {
		t.Fatalf("expected no features created, got %d", stats.Total)
	}
}

func TestFeaturesSkipPassAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	for i := 1; i <= 3; i++ {
		testsupport.NewFeature(t, env.store, i)
	}

	out, _, err := runCLI(t, []string{"features", "skip", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	requireContains(t, out, "Feature 'feature 1' moved to end of queue (priority 1 -> 4)")

	if _, _, err := runCLI(t, []string{"features", "pass", "2"}, env.configPath); err != nil {
		t.Fatalf("pass: %v", err)
	}
	_, _, err = runCLI(t, []string{"features", "skip", "2"}, env.configPath)
	if !errors.Is(err, features.ErrInvalidState) {
		t.Fatalf("skip passing feature: expected invalid state, got %v", err)
	}

	out, _, err = runCLI(t, []string{"features", "list", "--pending"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "feature 3")
	requireContains(t, out, "Showing 2 of 2")
	if strings.Contains(out, "feature 2") {
		t.Fatalf("passing feature listed as pending:\n%s", out)
	}
	if strings.Index(out, "feature 3") > strings.Index(out, "feature 1") {
		t.Fatalf("skipped feature should sort last:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"features", "list", "--passing", "--pending"}, env.configPath); err == nil {
		t.Fatal("expected conflicting filters to fail")
	}
}

func TestFeaturesNextWhenAllPassing(t *testing.T) {
	env := setupCLITestEnv(t)
	f := testsupport.NewFeature(t, env.store, 1)
	testsupport.MarkPassing(t, env.store, f.ID)

	out, _, err := runCLI(t, []string{"features", "next"}, env.configPath)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	requireContains(t, out, "All features are passing! No more work to do.")
}

func TestFeaturesDeleteAndMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewFeature(t, env.store, 1)

	out, _, err := runCLI(t, []string{"features", "delete", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "Deleted feature 1")

	_, _, err = runCLI(t, []string{"features", "show", "1"}, env.configPath)
	if !errors.Is(err, features.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	requireContains(t, describeError(err), "not found")

	if _, _, err := runCLI(t, []string{"features", "show", "abc"}, env.configPath); err == nil {
		t.Fatal("expected invalid id error")
	}
}

func TestFeaturesStats(t *testing.T) {
	env := setupCLITestEnv(t)
	var ids []int64
	for i := 1; i <= 7; i++ {
		ids = append(ids, testsupport.NewFeature(t, env.store, i).ID)
	}
	testsupport.MarkPassing(t, env.store, ids[:3]...)

	out, _, err := runCLI(t, []string{"features", "stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats api.StatsResponse
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Passing != 3 || stats.Total != 7 || stats.Percentage != 42.9 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	out, _, err = runCLI(t, []string{"features", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("stats table: %v", err)
	}
	requireContains(t, out, "42.9%")
}
