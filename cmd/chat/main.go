package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shahriarspace/InvestHub/internal/infrastructure/realtime"
	"github.com/shahriarspace/InvestHub/internal/infrastructure/rest"
	"github.com/shahriarspace/InvestHub/internal/logger"
	"github.com/shahriarspace/InvestHub/internal/pkg/messaging/application"
)

const requestTimeout = 10 * time.Second

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
	if flagUserID == "" {
		return fmt.Errorf("a user id is required (-u or CHAT_USER_ID)")
	}

	api := rest.New(flagAPIBase)

	var syncr *application.Synchronizer
	manager := realtime.NewManager(realtime.Options{
		URL: flagWSURL,
		OnConnect: func() {
			fmt.Println("* live channel connected")
			syncr.HandleReconnect()
		},
		OnDisconnect: func() {
			fmt.Println("* live channel lost, messages fall back to REST")
		},
	})
	defer manager.Disconnect()

	coord := application.NewCoordinator(manager, flagUserID)
	syncr = application.NewSynchronizer(api, manager, coord, flagUserID)

	coord.SetOnTypingChanged(func(users []string) {
		if len(users) > 0 {
			fmt.Printf("* %s typing...\n", strings.Join(users, ", "))
		}
	})

	var printed int
	syncr.SetOnChange(func() {
		msgs := syncr.Messages()
		for ; printed < len(msgs); printed++ {
			m := msgs[printed]
			who := m.SenderID
			if who == flagUserID {
				who = "me"
			}
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, m.Content)
		}
	})

	manager.Connect()

	fmt.Println("commands: /list, /open <n|id>, /start <userId>, /close, /quit; anything else sends")

	var conversations []application.ConversationView
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			syncr.Close()
			return nil
		case line == "/close":
			syncr.Close()
			printed = 0
			fmt.Println("* conversation closed")
		case line == "/list":
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			views, err := syncr.LoadConversations(ctx)
			cancel()
			if err != nil {
				fmt.Println("! failed to load conversations:", err)
				continue
			}
			conversations = views
			for i, v := range views {
				fmt.Printf("%d) %s  %s\n", i+1, v.DisplayName, preview(v))
			}
		case strings.HasPrefix(line, "/start "):
			otherID := strings.TrimSpace(strings.TrimPrefix(line, "/start "))
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			view, err := syncr.StartConversation(ctx, otherID)
			cancel()
			if err != nil {
				fmt.Println("! failed to start conversation:", err)
				continue
			}
			openConversation(syncr, view.ID, &printed)
		case strings.HasPrefix(line, "/open "):
			arg := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			id := arg
			if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(conversations) {
				id = conversations[n-1].ID
			}
			openConversation(syncr, id, &printed)
		default:
			coord.InputActivity()
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			err := syncr.Send(ctx, line)
			cancel()
			if err != nil {
				fmt.Println("! failed to send:", err)
			}
		}
	}
	return scanner.Err()
}

func openConversation(syncr *application.Synchronizer, id string, printed *int) {
	*printed = 0
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := syncr.Open(ctx, id); err != nil {
		fmt.Println("! failed to open conversation:", err)
		return
	}
	logger.Log.Debug("conversation opened", zap.String("conversationId", id))
	fmt.Println("* opened", id)
}

func preview(v application.ConversationView) string {
	if v.LastMessage == "" {
		return "(no messages)"
	}
	return fmt.Sprintf("%q %s", v.LastMessage, v.LastMessageTime.Local().Format("Jan 2 15:04"))
}
