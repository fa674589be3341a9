package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func confirmAction(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/N]: ", prompt)
	response, _ := reader.ReadString('\n') // Error ignored: EOF/error treated as "no"
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
