package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"forexjoey/internal/agent"
	"forexjoey/internal/analysis/economic"
	"forexjoey/internal/config"
	"forexjoey/internal/decision"
	"forexjoey/internal/gateway/binance"
	"forexjoey/internal/gateway/database"
	"forexjoey/internal/gateway/provider"
	"forexjoey/internal/logger"
	"forexjoey/internal/reflection"
	"forexjoey/internal/snapshot"
	httptransport "forexjoey/internal/transport/http"
	"forexjoey/internal/transport/ws"
)

// 中文说明：
// 入口。默认以 API 服务方式运行；传 -analyze 时走单次分析模式，
// 结果以表格打印到终端后退出，便于人工核对一次融合决策。

func main() {
	var (
		configPath = flag.String("config", "", "TOML 配置文件路径（留空用默认配置）")
		analyze    = flag.String("analyze", "", "单次分析模式：货币对，如 EUR/USD")
		timeframe  = flag.String("timeframe", "H1", "单次分析模式的周期")
		inputPath  = flag.String("input", "", "单次分析模式的外部数据 JSON（新闻/日历/宏观）")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.LogLLMPayload)

	if err := run(cfg, *analyze, *timeframe, *inputPath); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, analyzePair, timeframe, inputPath string) error {
	store, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("打开数据库失败: %w", err)
	}
	defer store.Close()

	providers := provider.BuildProvidersFromConfig(modelCfgs(cfg.AI.Models), cfg.AITimeout())
	if len(providers) == 0 {
		logger.Warnf("未配置可用推理模型，融合与复盘均走确定性兜底")
	}

	model := reflection.NewModel(store, cfg.Reflection.WeightBlend)
	fusion := decision.NewEngine(providers, model, cfg.AITimeout())
	fusion.MaxTokens = cfg.AI.MaxTokens
	reflector := reflection.NewEngine(providers, model, cfg.AITimeout())

	econ := &economic.Analyzer{Timeout: cfg.AITimeout()}
	if p, ok := provider.FirstEnabled(providers); ok {
		econ.Reasoner = p
	}

	var snap agent.Snapshotter
	if cfg.Snapshot.Enabled {
		snap = snapshot.New(time.Duration(cfg.Snapshot.TimeoutSeconds) * time.Second)
	}

	hub := ws.NewHub()
	svc := &agent.Service{
		Market: binance.New(binance.Config{
			APIKey:    cfg.Market.APIKey,
			APISecret: cfg.Market.APISecret,
			Symbols:   cfg.Market.Symbols,
			CacheMax:  cfg.Market.CacheMax,
		}),
		Fusion:      fusion,
		Reflector:   reflector,
		Model:       model,
		Store:       store,
		Hub:         hub,
		Snapshot:    snap,
		Economic:    econ,
		CandleLimit: cfg.Fusion.CandleLimit,
	}

	if analyzePair != "" {
		return runOnce(svc, analyzePair, timeframe, inputPath)
	}
	return serve(cfg, svc, hub)
}

// runOnce 执行一次完整分析并打印结果表格。
func runOnce(svc *agent.Service, pair, timeframe, inputPath string) error {
	req := agent.AnalyzeRequest{}
	if inputPath != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("读取外部数据失败: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("解析外部数据失败: %w", err)
		}
	}
	req.Pair = pair
	req.Timeframe = timeframe

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := svc.Analyze(ctx, req)
	if err != nil {
		return err
	}
	printDecision(os.Stdout, res.Decision)
	printSignal(os.Stdout, res.Result)
	return nil
}

// serve 启动 HTTP API，直到收到退出信号。
func serve(cfg config.Config, svc *agent.Service, hub *ws.Hub) error {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	httptransport.NewRouter(svc, hub).Register(engine)

	srv := &http.Server{Addr: cfg.Server.Listen, Handler: engine}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("服务启动 %s", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("收到退出信号，开始关停")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP 关停异常: %v", err)
	}
	hub.Shutdown()
	return nil
}

func modelCfgs(models []config.ModelConfig) []provider.ModelCfg {
	out := make([]provider.ModelCfg, 0, len(models))
	for _, m := range models {
		out = append(out, provider.ModelCfg{
			ID:             m.ID,
			Provider:       m.Provider,
			APIURL:         m.APIURL,
			APIKey:         m.APIKey,
			Model:          m.Model,
			Enabled:        m.Enabled,
			SupportsVision: m.SupportsVision,
			ExpectJSON:     m.ExpectJSON,
			Headers:        m.Headers,
		})
	}
	return out
}
