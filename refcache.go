package main

import (
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"

	"refcache-api/internal/cli"
	"refcache-api/internal/config"
	"refcache-api/internal/handler"
	"refcache-api/internal/svc"
)

var configFile = flag.String("f", "etc/refcache.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()

	cli.LogConfigSummary(cfg)
	ctx := svc.MustNewServiceContext(*cfg)
	httpx.SetErrorHandlerCtx(handler.ErrorHandler)
	handler.RegisterHandlers(server, ctx)

	fmt.Printf("Starting server at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
