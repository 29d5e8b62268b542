// chatd runs the in-memory messaging broker standalone so the chat client
// can be exercised locally without the platform backend.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shahriarspace/InvestHub/internal/chattest"
	"github.com/shahriarspace/InvestHub/internal/logger"
	"github.com/shahriarspace/InvestHub/internal/pkg/messaging/domain"
)

var flagRunAddr string
var flagLogLevel string
var flagSeedUsers string

func parseFlags() {
	flag.StringVar(&flagRunAddr, "a", ":8081", "address and port")
	flag.StringVar(&flagLogLevel, "l", "info", "log level")
	flag.StringVar(&flagSeedUsers, "seed", "", "comma-separated user ids to seed, e.g. alice,bob")
	flag.Parse()

	if env := os.Getenv("RUN_ADDR"); env != "" {
		flagRunAddr = env
	}

	if env := os.Getenv("LOG_LEVEL"); env != "" {
		flagLogLevel = env
	}

	if env := os.Getenv("SEED_USERS"); env != "" {
		flagSeedUsers = env
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	parseFlags()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := logger.Initialize(flagLogLevel); err != nil {
		return err
	}

	srv := chattest.NewServer()
	defer srv.Close()

	for _, id := range strings.Split(flagSeedUsers, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		srv.AddUser(domain.User{ID: id, FirstName: id})
		logger.Log.Info("seeded user", zap.String("userId", id))
	}

	logger.Log.Info("running dev broker", zap.String("address", flagRunAddr))
	return http.ListenAndServe(flagRunAddr, srv.Handler())
}
