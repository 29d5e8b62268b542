package main

import (
	"flag"
	"os"
)

var flagAPIBase string
var flagWSURL string
var flagUserID string
var flagLogLevel string

func parseFlags() {
	flag.StringVar(&flagAPIBase, "a", "http://localhost:8081", "messaging API base URL")
	flag.StringVar(&flagWSURL, "w", "ws://localhost:8081/ws", "live channel URL")
	flag.StringVar(&flagUserID, "u", "", "user id to act as")
	flag.StringVar(&flagLogLevel, "l", "warn", "log level")
	flag.Parse()

	if env := os.Getenv("API_BASE_URL"); env != "" {
		flagAPIBase = env
	}

	if env := os.Getenv("WS_URL"); env != "" {
		flagWSURL = env
	}

	if env := os.Getenv("CHAT_USER_ID"); env != "" {
		flagUserID = env
	}

	if env := os.Getenv("LOG_LEVEL"); env != "" {
		flagLogLevel = env
	}
}
