package main

import "errors"

// Default limits for CLI commands.
const (
	DefaultAuditLimit      = 20
	DefaultTargetWordCount = 3000
)

var errUsage = errors.New("invalid usage")
