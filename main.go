package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/sirupsen/logrus"

	"github.com/orbit-hub/orbit/internal/cache"
	"github.com/orbit-hub/orbit/internal/config"
	"github.com/orbit-hub/orbit/internal/logging"
	"github.com/orbit-hub/orbit/internal/mirror"
	"github.com/orbit-hub/orbit/internal/proxy"
	"github.com/orbit-hub/orbit/internal/server"
	"github.com/orbit-hub/orbit/internal/server/routes"
	"github.com/orbit-hub/orbit/internal/tunnel"
	"github.com/orbit-hub/orbit/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}
	if closer := logging.Closer(logger); closer != nil {
		defer closer.Close()
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["mirrors"] = config.MirrorPrefixes(cfg.Mirrors)
		fields["routes"] = len(cfg.Routes)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "构建网关失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["mirrors"] = config.MirrorPrefixes(cfg.Mirrors)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["fetch_strategy"] = cfg.Global.FetchStrategy
	fields["tunnel_prefix"] = cfg.Global.TunnelPrefix
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx, cfg.Global.ListenPort, gateway, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildGateway 按 “缓存 → 镜像 → Fiber 应用 → 隧道 → Dispatcher” 顺序组装，
// 所有依赖在此显式注入，没有包级全局状态。
func buildGateway(cfg *config.Config, logger *logrus.Logger) (http.Handler, error) {
	resolver, err := mirror.NewResolverFromConfig(cfg.Mirrors)
	if err != nil {
		return nil, fmt.Errorf("build resolver: %w", err)
	}
	strategy, err := proxy.NewFetchStrategy(cfg.Global.FetchStrategy)
	if err != nil {
		return nil, err
	}

	httpClient := server.NewUpstreamClient(cfg.Global.UpstreamTimeout.DurationValue())
	assetMirror, err := proxy.NewMirror(proxy.MirrorOptions{
		Name:                  "assets",
		Resolver:              resolver,
		Store:                 cache.NewStore(),
		Client:                httpClient,
		TTL:                   cfg.Global.CacheTTL.DurationValue(),
		Strategy:              strategy,
		OctetStreamExtensions: cfg.Global.OctetStreamExtensions,
		Logger:                logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build mirror: %w", err)
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:       logger,
		Assets:       proxy.NewHandler(assetMirror, logger),
		StaticDir:    cfg.Global.StaticDir,
		NotFoundPage: cfg.Global.NotFoundPagePath(),
		Routes:       cfg.Routes,
		Redirects:    cfg.Redirects,
		AllowOrigins: cfg.Global.AllowOrigins,
		Diagnostics: func(r fiber.Router) {
			routes.RegisterMirrorRoutes(r, assetMirror)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}

	tunnelServer, err := tunnel.NewServer(tunnel.Options{
		Prefix:     cfg.Global.TunnelPrefix,
		Client:     httpClient,
		Logger:     logger,
		AllowHosts: cfg.Global.TunnelAllowHosts,
	})
	if err != nil {
		return nil, fmt.Errorf("build tunnel: %w", err)
	}

	dispatcher, err := server.NewDispatcher(tunnelServer, adaptor.FiberApp(app), logger)
	if err != nil {
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}
	return dispatcher, nil
}

// printVersion 输出注入的版本与提交信息。
func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("orbit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ORBIT_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ORBIT_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}
