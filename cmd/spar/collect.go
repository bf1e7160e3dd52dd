package main

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/boyter/gocodewalker"

	"github.com/rlch/spar"
)

// Base name patterns of files that make up units.
const (
	suitePattern  = "*.suite.{yaml,yml}"
	goTestPattern = "*_test.go"
)

// collectUnits turns paths into unit identifiers. Files are units as given.
// Directories are walked honouring .gitignore: each suite file is a unit,
// and so is each directory holding Go test files. Without paths, the
// config's units are used, falling back to walking the config directory.
func collectUnits(args []string, cfg *spar.Config) ([]string, error) {
	if len(args) == 0 {
		units, err := cfg.ResolveUnits()
		if err != nil {
			return nil, err
		}

		if len(units) > 0 {
			return units, nil
		}

		args = []string{firstNonEmpty(cfg.Dir, ".")}
	}

	seen := make(map[string]bool)

	var units []string

	add := func(unit string) {
		if !seen[unit] {
			seen[unit] = true
			units = append(units, unit)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			add(arg)

			continue
		}

		found, err := walkDir(arg)
		if err != nil {
			return nil, err
		}

		for _, unit := range found {
			add(unit)
		}
	}

	if len(units) == 0 {
		return nil, errNoUnits
	}

	return units, nil
}

// walkDir finds the units below root, sorted.
func walkDir(root string) ([]string, error) {
	fileListQueue := make(chan *gocodewalker.File, 100)

	fileWalker := gocodewalker.NewFileWalker(root, fileListQueue)
	fileWalker.AllowListExtensions = []string{"suite.yaml", "suite.yml", "yaml", "yml", "go"}

	var (
		mu      sync.Mutex
		walkErr error
	)

	fileWalker.SetErrorHandler(func(e error) bool {
		mu.Lock()
		walkErr = e
		mu.Unlock()

		return true
	})

	found := make(map[string]bool)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for f := range fileListQueue {
			if unit, ok := unitFor(f.Location, f.Filename); ok {
				found[unit] = true
			}
		}
	}()

	if err := fileWalker.Start(); err != nil {
		return nil, err
	}

	wg.Wait()

	if walkErr != nil {
		return nil, walkErr
	}

	units := make([]string, 0, len(found))
	for unit := range found {
		units = append(units, unit)
	}

	sort.Strings(units)

	return units, nil
}

// unitFor maps a file to the unit it belongs to.
func unitFor(location, name string) (string, bool) {
	if ok, _ := doublestar.Match(suitePattern, name); ok {
		return location, true
	}

	if ok, _ := doublestar.Match(goTestPattern, name); ok {
		return filepath.Dir(location), true
	}

	return "", false
}
