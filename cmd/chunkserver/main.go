package main

import (
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"os/signal"
	"syscall"

	"github.com/pyropy/softraid/core/chunkserver"
	"github.com/pyropy/softraid/lib/logger"
)

var log, _ = logger.New("chunk-server-rpc")

func main() {
	if err := run(); err != nil {
		log.Fatalln("startup", "ERROR", err)
	}
}

func run() error {
	cfg, err := chunkserver.GetConfig()
	if err != nil {
		log.Errorw("startup", "error", "config error")
		return err
	}

	chunkServer := chunkserver.NewChunkServer(cfg)
	defer chunkServer.Close()

	err = chunkServer.Load()
	if err != nil {
		log.Errorw("startup", "error", "failed to load chunks", "path", cfg.Chunks.Path)
		return err
	}

	err = rpc.Register(chunkserver.NewChunkServerAPI(chunkServer))
	if err != nil {
		return err
	}
	rpc.HandleHTTP()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.Errorw("startup", "error", "net listen failed")
		return err
	}

	listenAddr := l.Addr().String()

	log.Infow("startup", "status", "chunkserver rpc server started", "address", listenAddr, "chunks", len(chunkServer.GetAllChunks()))
	defer log.Infow("shutdown", "status", "chunkserver rpc server stopped", "address", listenAddr)
	go http.Serve(l, nil)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	log.Infow("shutdown", "status", "chunkserver rpc server stopping", "address", listenAddr)

	return nil
}
