package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"ai-sales-agent-be/internal/bootstrap"
	"ai-sales-agent-be/internal/config"
	"ai-sales-agent-be/pkg/agent"
	"ai-sales-agent-be/pkg/database"
	"ai-sales-agent-be/pkg/profile"

	"github.com/fatih/color"
)

const separator = "=================================================================="

func main() {
	userID := flag.String("user", profile.RandomUserID, "customer id to talk to, or \"random\"")
	flag.Parse()

	cfg := config.Load()

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatalf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := container.ConsumerService.Consume(ctx); err != nil {
		color.Yellow("Transcript consumer unavailable: %v", err)
	}

	orch := container.Orchestrator

	color.Cyan("🚀 %s sales agent console (Ctrl+C to quit)\n", cfg.Agent.CompanyName)

	first, err := orch.Initiate(ctx, *userID)
	if err != nil {
		color.Red("Initiation failed: %v", err)
		os.Exit(1)
	}
	printExchange(first)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		color.New(color.FgYellow).Print("donner votre message: ")

		var msg string
		select {
		case <-ctx.Done():
			shutdown(orch)
			return
		case line, ok := <-lines:
			if !ok {
				shutdown(orch)
				return
			}
			msg = line
		}

		if strings.TrimSpace(msg) == "" {
			color.HiBlack("⏭️ Message vide ignoré.")
			continue
		}

		fmt.Println(separator)
		color.Green("User: %s\n", msg)

		ex, err := orch.Respond(ctx, first.UserID, msg)
		if err != nil {
			color.Red("Agent error: %v", err)
			continue
		}
		printExchange(ex)
	}
}

func printExchange(ex *agent.Exchange) {
	fmt.Println(separator)
	if ex.Classification != nil {
		color.HiBlack("[%s] intent=%s (%.2f) products=%s", ex.Strategy, ex.Classification.Intent, ex.Classification.IntentScore, ex.Classification.ProductLabel())
	} else {
		color.HiBlack("[%s]", ex.Strategy)
	}
	if ex.Reply.Subject != "" {
		color.Cyan("Objet: %s", ex.Reply.Subject)
	}
	color.Cyan("Agent: %s\n", ex.Reply.Body)
}

func shutdown(orch *agent.Orchestrator) {
	orch.Shutdown(context.Background())
	color.Cyan("\n🛑 Session terminée. Au revoir 👋")
}
