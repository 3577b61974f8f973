// =============================================================================
// AgentSwarm 主入口
// =============================================================================
// 基于文档与网络检索的多应答者问答服务
//
// 使用方法:
//
//	agentswarm serve                              # 启动服务
//	agentswarm serve -config config.yaml          # 指定配置文件
//	agentswarm chat -conversation demo            # 终端对话
//	agentswarm ingest -document ./cv.txt          # 预构建文档集合
//	agentswarm collections -json                  # 列出已构建集合
//	agentswarm health                             # 健康检查
//	agentswarm version                            # 显示版本信息
// =============================================================================

package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/agentswarm/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "chat":
		err = runChat(os.Args[2:])
	case "ingest":
		err = runIngest(os.Args[2:])
	case "collections":
		err = runCollections(os.Args[2:])
	case "health":
		err = runHealthCheck(os.Args[2:])
		if err == nil {
			fmt.Println("OK")
		}
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("AgentSwarm %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`AgentSwarm - document and web search question answering

Usage:
  agentswarm <command> [options]

Commands:
  serve        Start the HTTP server
  chat         Interactive conversation in the terminal
  ingest       Build (or reuse) the document collection
  collections  List built document collections
  health       Check server health
  version      Show version information
  help         Show this help message

Common options:
  -config <path>        Path to configuration file (YAML)

Options for 'chat':
  -conversation <id>    Conversation to resume (default: new id)

Options for 'ingest':
  -document <path>      Document to ingest (overrides retrieval.document_path)

Options for 'collections':
  -json                 Print collections as JSON

Options for 'health':
  -addr <url>           Server address (default: http://localhost:8080)

Examples:
  agentswarm serve -config /etc/agentswarm/config.yaml
  agentswarm chat -conversation demo
  agentswarm ingest -document ./curriculum.txt
  agentswarm health -addr http://localhost:8080`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
