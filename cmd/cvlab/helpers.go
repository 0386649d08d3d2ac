package main

import (
	"sort"

	"github.com/fatih/color"
)

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func okMark() string {
	return color.New(color.Bold, color.FgGreen).Sprint("✔")
}

func failMark() string {
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
