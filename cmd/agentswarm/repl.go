package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/BaSui01/agentswarm/api/handlers"
	"github.com/BaSui01/agentswarm/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 chat 命令
// =============================================================================

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	conversation := fs.String("conversation", "", "Conversation ID to resume")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	// 终端输出留给对话，日志写到 stderr
	cfg.Log.OutputPaths = []string{"stderr"}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close stores", zap.Error(err))
		}
	}()

	if _, err := a.ensureDocument(ctx); err != nil {
		return fmt.Errorf("prepare document collection: %w", err)
	}
	router, err := a.router()
	if err != nil {
		return err
	}

	id := *conversation
	if id == "" {
		id = uuid.NewString()
	}
	return repl(ctx, router, os.Stdin, os.Stdout, id, uuid.NewString)
}

// repl 逐行读取问题并打印 "[应答者] 回答"；exit/quit/sair 退出，new 开启新会话
func repl(ctx context.Context, runner handlers.TurnRunner, in io.Reader, out io.Writer, id string, newID func() string) error {
	fmt.Fprintf(out, "conversation %s (type 'new' to start over, 'exit' to quit)\n", id)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "sair":
			return nil
		case "new":
			id = newID()
			fmt.Fprintf(out, "conversation %s\n", id)
			continue
		}

		resp, err := runner.Run(types.WithConversationID(ctx, id), id, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error (%s): %v\n", types.ConditionOf(err), err)
			continue
		}
		fmt.Fprintf(out, "[%s] %s\n", resp.AgentName, resp.Content)
	}
}
